package domain

// Platform identifies a supported social-media platform.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// String returns the string representation of the Platform.
func (p Platform) String() string {
	return string(p)
}

// KnownPlatforms lists the platforms with built-in validation rules.
func KnownPlatforms() []Platform {
	return []Platform{PlatformFacebook, PlatformInstagram, PlatformTikTok}
}
