package promotion

import "time"

// Configuration is the decoded catalog response handed to the scheduler.
type Configuration struct {
	Promotions          []Promotion `json:"promotions" yaml:"promotions"`
	Campaigns           []Campaign  `json:"campaigns,omitempty" yaml:"campaigns,omitempty"`
	SchemaVersion       string      `json:"schemaVersion" yaml:"schemaVersion"`
	ResetBalancingDate  *time.Time  `json:"resetBalancingDate,omitempty" yaml:"resetBalancingDate,omitempty"`
	ResetCumulativeDate *time.Time  `json:"resetCumulativeDate,omitempty" yaml:"resetCumulativeDate,omitempty"`
}

// Promotion is one displayable item of the catalog.
// Only ID, Weight and Target take part in scheduling.
type Promotion struct {
	ID                 string    `json:"id" yaml:"id"`
	Title              string    `json:"title,omitempty" yaml:"title,omitempty"`
	Subtitle           string    `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Icon               *Image    `json:"icon,omitempty" yaml:"icon,omitempty"`
	Cover              *Cover    `json:"cover,omitempty" yaml:"cover,omitempty"`
	Action             *Action   `json:"action,omitempty" yaml:"action,omitempty"`
	Content            []Content `json:"content,omitempty" yaml:"content,omitempty"`
	Weight             *int      `json:"weight,omitempty" yaml:"weight,omitempty"`
	MinDisplayDuration *int      `json:"minDisplayDuration,omitempty" yaml:"minDisplayDuration,omitempty"`
	Target             *Target   `json:"target,omitempty" yaml:"target,omitempty"`
}

// EffectiveWeight returns the configured weight, 1 when absent.
func (p Promotion) EffectiveWeight() int {
	if p.Weight == nil {
		return 1
	}
	return *p.Weight
}

// Target gates eligibility. Empty lists and nil dates are unbounded.
type Target struct {
	Platforms []string   `json:"platforms,omitempty" yaml:"platforms,omitempty"`
	Languages []string   `json:"languages,omitempty" yaml:"languages,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty" yaml:"endDate,omitempty"`
}

// Campaign groups promotions under a shared weight and target.
type Campaign struct {
	ID         string      `json:"id" yaml:"id"`
	Weight     int         `json:"weight" yaml:"weight"`
	Target     *Target     `json:"target,omitempty" yaml:"target,omitempty"`
	Promotions []Promotion `json:"promotions" yaml:"promotions"`
}

type Image struct {
	ImageURL string `json:"imageUrl" yaml:"imageUrl"`
	Alt      string `json:"alt,omitempty" yaml:"alt,omitempty"`
	Size     string `json:"size,omitempty" yaml:"size,omitempty"` // "small" | "medium" | "large"
}

type Cover struct {
	MediaURL    string  `json:"mediaUrl,omitempty" yaml:"mediaUrl,omitempty"`
	MediaHeight float64 `json:"mediaHeight,omitempty" yaml:"mediaHeight,omitempty"`
	Alt         string  `json:"alt,omitempty" yaml:"alt,omitempty"`
}

type Action struct {
	Label           string `json:"label" yaml:"label"`
	URL             string `json:"url" yaml:"url"`
	BackgroundColor string `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
}

type Content struct {
	ImageURL    string `json:"imageURL,omitempty" yaml:"imageURL,omitempty"`
	Description string `json:"description" yaml:"description"`
}

// Stats maps promotion id to display count.
type Stats map[string]int
