package redis

const (
	// KeyPrefix namespaces every key written by streamlinks
	KeyPrefix = "streamlinks:"
	// KeyLinks holds the whole link collection as one JSON array
	KeyLinks = KeyPrefix + "links"
)

// LinksKey returns the Redis key for the link collection
func LinksKey() string {
	return KeyLinks
}
