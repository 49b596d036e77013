package model

// DataType selects the Fitbit resource a query node fetches.
type DataType string

const (
	DataTypeActivities DataType = "activities"
	DataTypeSleep      DataType = "sleep"
	DataTypeBadges     DataType = "badges"
)

// Valid reports whether d is one of the supported data types.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeActivities, DataTypeSleep, DataTypeBadges:
		return true
	default:
		return false
	}
}

// DateScoped reports whether the resource is addressed by day.
func (d DataType) DateScoped() bool {
	return d == DataTypeActivities || d == DataTypeSleep
}

// InputType selects which Instagram listing a watcher follows.
type InputType string

const (
	InputTypePhoto InputType = "photo" // Media uploaded by the user.
	InputTypeLike  InputType = "like"  // Media liked by the user.
)

// Valid reports whether t is a supported input type.
func (t InputType) Valid() bool {
	return t == InputTypePhoto || t == InputTypeLike
}

// OutputType selects what a watcher emits for each new item.
type OutputType string

const (
	OutputTypeLink OutputType = "link" // The media URL as a string.
	OutputTypeFile OutputType = "file" // The downloaded media bytes.
)

// Valid reports whether t is a supported output type.
func (t OutputType) Valid() bool {
	return t == OutputTypeLink || t == OutputTypeFile
}

// NodeType names the node kinds the runtime can host.
type NodeType string

const (
	NodeTypeFitbit      NodeType = "fitbit"
	NodeTypeInstagram   NodeType = "instagram"
	NodeTypeInstagramIn NodeType = "instagram in"
)

// Provider names an OAuth provider.
type Provider string

const (
	ProviderFitbit    Provider = "fitbit"
	ProviderStrava    Provider = "strava"
	ProviderInstagram Provider = "instagram"
)

// DisplayName returns the provider name as shown to users.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderFitbit:
		return "Fitbit"
	case ProviderStrava:
		return "Strava"
	case ProviderInstagram:
		return "Instagram"
	default:
		return string(p)
	}
}
