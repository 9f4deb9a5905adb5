package constants

const (
	// IDRandomBytes is the number of random bytes in generated record IDs.
	IDRandomBytes = 16

	MaxEmailLength    = 254
	MaxCaptionLength  = 2000
	MaxCommentLength  = 1000
	MaxBioLength      = 500
	MaxLocationLength = 100

	FeedDefaultLimit = 20
	FeedMaxLimit     = 100

	// NearbyMaxRadiusKm caps the search radius for nearby-post lookups.
	NearbyMaxRadiusKm = 100.0
)
