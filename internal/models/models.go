package models

import "time"

// CustomPrompt is the sentinel prompt value for transformations whose
// instruction text is supplied by the caller at generation time.
const CustomPrompt = "CUSTOM"

// Step identifies which stage of a pipeline produced a persisted image.
type Step string

const (
	StepSingle  Step = "single"
	StepTwoStep Step = "two-step"
)

// Account is a registered user. The phone number is the sole identity key;
// there is no numeric user id.
type Account struct {
	Phone           string     `json:"phone"`
	Password        string     `json:"password"`
	RemainingUses   int        `json:"remainingUses"`
	ImagesGenerated int        `json:"imagesGenerated"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastLoginAt     *time.Time `json:"lastLoginAt"`
}

// Summary strips the password for responses handed back to the account owner.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		Phone:           a.Phone,
		RemainingUses:   a.RemainingUses,
		ImagesGenerated: a.ImagesGenerated,
	}
}

type AccountSummary struct {
	Phone           string `json:"phone"`
	RemainingUses   int    `json:"remainingUses"`
	ImagesGenerated int    `json:"imagesGenerated"`
}

// Usage is the pair of counters returned after a successful charge.
type Usage struct {
	RemainingUses   int `json:"remainingUses"`
	ImagesGenerated int `json:"imagesGenerated"`
}

// Stats are the aggregate tallies kept alongside the accounts. They are
// incremented with the account mutations, not recomputed from scratch.
type Stats struct {
	TotalUsers  int `json:"totalUsers"`
	TotalImages int `json:"totalImages"`
}

// Transformation is a preconfigured image-edit instruction. A Prompt equal to
// CustomPrompt means the caller supplies the instruction text. Two-step
// transformations run the gateway twice, feeding the first result into the
// second call together with StepTwoPrompt.
type Transformation struct {
	Title                        string `json:"title"`
	Prompt                       string `json:"prompt"`
	Emoji                        string `json:"emoji"`
	Description                  string `json:"description"`
	IsMultiImage                 bool   `json:"isMultiImage,omitempty"`
	IsTwoStep                    bool   `json:"isTwoStep,omitempty"`
	StepTwoPrompt                string `json:"stepTwoPrompt,omitempty"`
	PrimaryUploaderTitle         string `json:"primaryUploaderTitle,omitempty"`
	PrimaryUploaderDescription   string `json:"primaryUploaderDescription,omitempty"`
	SecondaryUploaderTitle       string `json:"secondaryUploaderTitle,omitempty"`
	SecondaryUploaderDescription string `json:"secondaryUploaderDescription,omitempty"`
}

// Step returns which pipeline stage label this transformation persists under.
func (t Transformation) Step() Step {
	if t.IsTwoStep {
		return StepTwoStep
	}
	return StepSingle
}

// GeneratedContent is the display-path result of a generation. ImageURL is a
// data URL or server-relative URL; SecondaryImageURL carries the two-step
// intermediate artifact.
type GeneratedContent struct {
	ImageURL          string `json:"imageUrl"`
	Text              string `json:"text,omitempty"`
	SecondaryImageURL string `json:"secondaryImageUrl,omitempty"`
}
