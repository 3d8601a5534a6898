// pkg/schema/schema.go

// Package schema defines the round application schema, the project record,
// and the application payload shared between the builder, the submission
// state machine, and the external indexer.
package schema

import "strconv"

// QuestionType enumerates the form field kinds a round schema may declare.
type QuestionType string

const (
	QuestionProject        QuestionType = "project"
	QuestionRecipient      QuestionType = "recipient"
	QuestionText           QuestionType = "text"
	QuestionEmail          QuestionType = "email"
	QuestionAddress        QuestionType = "address"
	QuestionParagraph      QuestionType = "paragraph"
	QuestionDropdown       QuestionType = "dropdown"
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionCheckbox       QuestionType = "checkbox"
	QuestionNumber         QuestionType = "number"
	QuestionShortAnswer    QuestionType = "short-answer"
	QuestionLink           QuestionType = "link"
)

// Question is one entry of a round's dynamic application form.
type Question struct {
	ID        int          `json:"id"`
	Type      QuestionType `json:"type"`
	Title     string       `json:"title,omitempty"`
	Required  bool         `json:"required"`
	Encrypted bool         `json:"encrypted"`
	Hidden    bool         `json:"hidden"`
	Options   []string     `json:"options,omitempty"`
}

// Key returns the form-input key for the question.
func (q Question) Key() string {
	return strconv.Itoa(q.ID)
}

// Requirement flags a project-linked social account as required and/or
// needing a verified credential.
type Requirement struct {
	Required     bool `json:"required"`
	Verification bool `json:"verification"`
}

// ProjectRequirements lists per-provider account requirements.
type ProjectRequirements struct {
	Twitter Requirement `json:"twitter"`
	Github  Requirement `json:"github"`
}

// ApplicationSchema holds the ordered questions and account requirements of
// a round's application form.
type ApplicationSchema struct {
	Questions    []Question          `json:"questions"`
	Requirements ProjectRequirements `json:"requirements"`
}

// RoundApplicationMetadata is the versioned description of a round's
// application form. Immutable once loaded from the indexer for a round.
type RoundApplicationMetadata struct {
	Version           string            `json:"version"`
	LastUpdatedOn     int64             `json:"lastUpdatedOn"`
	ApplicationSchema ApplicationSchema `json:"applicationSchema"`
}

// ProjectQuestion returns the schema's project-type question, if declared.
func (m *RoundApplicationMetadata) ProjectQuestion() (Question, bool) {
	for _, q := range m.ApplicationSchema.Questions {
		if q.Type == QuestionProject {
			return q, true
		}
	}
	return Question{}, false
}

// RecipientQuestion returns the schema's recipient-type question, if declared.
func (m *RoundApplicationMetadata) RecipientQuestion() (Question, bool) {
	for _, q := range m.ApplicationSchema.Questions {
		if q.Type == QuestionRecipient {
			return q, true
		}
	}
	return Question{}, false
}

// MetaPtr addresses content-addressed off-chain storage.
type MetaPtr struct {
	Protocol string `json:"protocol"`
	Pointer  string `json:"pointer"`
}

// Credential is an opaque verifiable credential attached to a project. The
// verification cryptography is owned by an external service; the builder
// carries credentials through untouched.
type Credential struct {
	Provider string                 `json:"provider,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

// Project is a grantee's project record, loaded from the indexer and never
// mutated by the builder.
type Project struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Website        string                `json:"website"`
	BannerImg      string                `json:"bannerImg,omitempty"`
	LogoImg        string                `json:"logoImg,omitempty"`
	ProjectTwitter string                `json:"projectTwitter,omitempty"`
	ProjectGithub  string                `json:"projectGithub,omitempty"`
	UserGithub     string                `json:"userGithub,omitempty"`
	CreatedAt      int64                 `json:"createdAt,omitempty"`
	Credentials    map[string]Credential `json:"credentials,omitempty"`
	MetaPtr        MetaPtr               `json:"metaPtr"`
}

// IsSafeKey is the reserved form-input key carrying the "is this recipient a
// multisig" flag alongside the numeric question keys.
const IsSafeKey = "isSafe"

// Answers maps a question key (decimal question ID or IsSafeKey) to the raw
// form value: string, []string, or number.
type Answers map[string]interface{}

// EncryptedAnswer is the transportable ciphertext form of a single answer.
type EncryptedAnswer struct {
	Ciphertext            string `json:"ciphertext"`
	EncryptedSymmetricKey string `json:"encryptedSymmetricKey"`
}

// Answer is one entry of a built application. Exactly one of Answer and
// EncryptedAnswer is set, decided by the question's Encrypted flag.
type Answer struct {
	QuestionID      int              `json:"questionId"`
	Question        string           `json:"question"`
	Answer          interface{}      `json:"answer,omitempty"`
	EncryptedAnswer *EncryptedAnswer `json:"encryptedAnswer,omitempty"`
}

// RoundApplication is the builder's output: the payload that gets hashed,
// signed, pinned, and referenced by the apply transaction.
type RoundApplication struct {
	Round     string   `json:"round"`
	Recipient string   `json:"recipient,omitempty"`
	Project   *Project `json:"project"`
	Answers   []Answer `json:"answers"`
}

// SignedRoundApplication pairs an application with the wallet signature over
// the deterministic-JSON hash of the application.
type SignedRoundApplication struct {
	Signature   string            `json:"signature"`
	Application *RoundApplication `json:"application"`
}
