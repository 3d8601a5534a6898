// internal/builder/builder.go

// Package builder assembles a round application from the round's form
// schema, the applicant's project, and the raw form answers. Answers marked
// encrypted in the schema never appear in plaintext in the built payload.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/lit"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/wallet"
	"github.com/gitcoinco/grants-stack-sub000/internal/canonicaljson"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
	"github.com/gitcoinco/grants-stack-sub000/pkg/schema"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Builder turns form input into a signable round application.
type Builder struct {
	encrypter lit.Encrypter
	logger    logger.Logger
}

func New(encrypter lit.Encrypter, log logger.Logger) *Builder {
	if encrypter == nil {
		encrypter = lit.NopEncrypter{}
	}
	return &Builder{encrypter: encrypter, logger: log}
}

// Input carries everything Build needs.
type Input struct {
	RoundID  string
	Metadata *schema.RoundApplicationMetadata
	Project  *schema.Project
	Answers  schema.Answers
}

// Build assembles the application. The answers slice follows schema question
// order, so the same input always produces the same payload. Encryption runs
// only when at least one answered question requires it; callers must have
// connected the encrypter before that point.
func (b *Builder) Build(ctx context.Context, in Input) (*schema.RoundApplication, error) {
	if in.Metadata == nil {
		return nil, stderrors.NewRoundMetadataMissingError(in.RoundID)
	}
	if _, ok := in.Metadata.ProjectQuestion(); !ok {
		return nil, stderrors.NewProjectQuestionMissingError(in.RoundID)
	}
	if in.Project == nil {
		return nil, stderrors.NewProjectMetadataMissingError("")
	}

	app := &schema.RoundApplication{
		Round:   in.RoundID,
		Project: in.Project,
	}

	for _, q := range in.Metadata.ApplicationSchema.Questions {
		switch q.Type {
		case schema.QuestionProject:
			// The project record itself answers this question.
			continue

		case schema.QuestionRecipient:
			// Answer validation rejects bad recipients before the builder
			// runs; a missing one just stays empty here.
			if recipient, ok := in.Answers[q.Key()].(string); ok && addressPattern.MatchString(recipient) {
				app.Recipient = recipient
			}

		default:
			// Every non-project, non-recipient question yields exactly one
			// entry, answered or not, so the payload mirrors the form.
			answer := schema.Answer{
				QuestionID: q.ID,
				Question:   q.Title,
			}

			raw, answered := in.Answers[q.Key()]
			switch {
			case answered && q.Encrypted:
				encrypted, err := b.encryptAnswer(ctx, raw)
				if err != nil {
					return nil, err
				}
				answer.EncryptedAnswer = encrypted
			case answered:
				answer.Answer = raw
			}

			app.Answers = append(app.Answers, answer)
		}
	}

	b.logger.Debug("application built", map[string]interface{}{
		"round":   in.RoundID,
		"project": in.Project.ID,
		"answers": len(app.Answers),
	})
	return app, nil
}

func (b *Builder) encryptAnswer(ctx context.Context, raw interface{}) (*schema.EncryptedAnswer, error) {
	plaintext, err := answerPlaintext(raw)
	if err != nil {
		return nil, stderrors.NewEncryptionFailedError(err)
	}
	return b.encrypter.Encrypt(ctx, plaintext)
}

// answerPlaintext flattens a form value for encryption. Strings pass
// through; everything else uses its JSON encoding.
func answerPlaintext(raw interface{}) (string, error) {
	if s, ok := raw.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// HasEncryptedAnswers reports whether any answered question requires
// encryption, which decides whether the authentication phase runs at all.
func HasEncryptedAnswers(m *schema.RoundApplicationMetadata, answers schema.Answers) bool {
	for _, q := range m.ApplicationSchema.Questions {
		if !q.Encrypted {
			continue
		}
		if _, ok := answers[q.Key()]; ok {
			return true
		}
	}
	return false
}

// Sign hashes the application's canonical JSON form and signs the hash.
func Sign(ctx context.Context, signer wallet.Signer, app *schema.RoundApplication) (*schema.SignedRoundApplication, error) {
	hash, err := canonicaljson.HashHex(app)
	if err != nil {
		return nil, err
	}

	signature, err := signer.SignMessage(ctx, hash)
	if err != nil {
		return nil, err
	}

	return &schema.SignedRoundApplication{
		Signature:   signature,
		Application: app,
	}, nil
}

// Verify recomputes the application hash and checks the signature recovers
// to expectedSigner.
func Verify(signed *schema.SignedRoundApplication, expectedSigner string) error {
	hash, err := canonicaljson.HashHex(signed.Application)
	if err != nil {
		return err
	}

	recovered, err := wallet.RecoverSigner(hash, signed.Signature)
	if err != nil {
		return err
	}
	if recovered != expectedSigner {
		return fmt.Errorf("signature recovered to %s, expected %s", recovered, expectedSigner)
	}
	return nil
}
