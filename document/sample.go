package document

// Sample returns the built-in six document set: three about the fruit, three about Apple Inc.
func Sample() []Document {
	return []Document{
		{ID: "vec1", Text: "Apple is a popular fruit known for its sweetness and crisp texture."},
		{ID: "vec2", Text: "The tech company Apple is known for its innovative products like the iPhone."},
		{ID: "vec3", Text: "Many people enjoy eating apples as a healthy snack."},
		{ID: "vec4", Text: "Apple Inc. has revolutionized the tech industry with its sleek designs and user-friendly interfaces."},
		{ID: "vec5", Text: "An apple a day keeps the doctor away, as the saying goes."},
		{ID: "vec6", Text: "Apple Computer Company was founded on April 1, 1976, by Steve Jobs, Steve Wozniak, and Ronald Wayne as a partnership."},
	}
}

// SampleQuery is the query run against the sample set.
const SampleQuery = "Tell me about the tech company known as Apple."
