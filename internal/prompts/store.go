// Package prompts resolves supplier-specific extraction prompts.
//
// Profiles are keyed by a normalized supplier key and persisted through a
// Repository. The store re-reads the repository on every call, so edits made
// by another process are picked up by the next job. Writes are
// read-modify-write of the whole set; concurrent writers race and the last
// one wins.
package prompts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"nicayne/internal/logger"
)

const (
	// DefaultKey is the profile used when a supplier has no active profile.
	DefaultKey = "default"

	// FallbackPrompt is used when not even the default profile exists.
	FallbackPrompt = "Extract BOL data with standard field mapping. Focus on accuracy and completeness."

	// DefaultPrompt seeds the default profile of an empty store.
	DefaultPrompt = "Extract every coil listed on the Bill of Lading. Use the shipper as VENDOR_NAME " +
		"and the consignee as CUSTOMER_NAME. Report one entry per coil tag."

	// MaxDocumentChars bounds the document text embedded in the extraction prompt.
	MaxDocumentChars = 4000

	timestampLayout = "2006-01-02T15:04:05.000000"
)

// Profile is a supplier's extraction instructions.
type Profile struct {
	Key          string `json:"key" yaml:"key"`
	Name         string `json:"name" yaml:"name"`
	Prompt       string `json:"prompt" yaml:"prompt"`
	Active       bool   `json:"active" yaml:"active"`
	Created      string `json:"created" yaml:"created"`
	LastModified string `json:"last_modified" yaml:"last_modified"`
}

// NormalizeKey turns a supplier name into its profile key.
func NormalizeKey(supplier string) string {
	key := strings.ToLower(strings.TrimSpace(supplier))
	key = strings.ReplaceAll(key, " ", "_")
	return strings.ReplaceAll(key, "-", "_")
}

// Store resolves and edits supplier profiles.
type Store struct {
	repo Repository
	now  func() time.Time
	log  zerolog.Logger
}

// NewStore creates a store over repo.
func NewStore(repo Repository) *Store {
	return &Store{
		repo: repo,
		now:  time.Now,
		log:  logger.WithComponent("prompt-store"),
	}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) timestamp() string {
	return s.now().Format(timestampLayout)
}

// Seed writes the default profile when the store is empty.
func (s *Store) Seed(ctx context.Context) error {
	const op = "Seed"

	profiles, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(profiles) > 0 {
		return nil
	}

	ts := s.timestamp()
	profiles[DefaultKey] = Profile{
		Key:          DefaultKey,
		Name:         "Default",
		Prompt:       DefaultPrompt,
		Active:       true,
		Created:      ts,
		LastModified: ts,
	}
	if err := s.repo.Save(ctx, profiles); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info().Msg("Seeded default supplier profile")
	return nil
}

// Resolve returns the prompt for supplier: its active profile, else the
// default profile, else FallbackPrompt. A repository read error also yields
// FallbackPrompt and is returned alongside it.
func (s *Store) Resolve(ctx context.Context, supplier string) (string, error) {
	const op = "Resolve"

	profiles, err := s.repo.Load(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load supplier profiles")
		return FallbackPrompt, fmt.Errorf("%s: %w", op, err)
	}

	key := NormalizeKey(supplier)
	if p, ok := profiles[key]; ok && p.Active {
		s.log.Debug().Str("supplier", key).Msg("Using supplier prompt")
		return p.Prompt, nil
	}
	if p, ok := profiles[DefaultKey]; ok {
		s.log.Debug().Str("supplier", key).Msg("Using default prompt")
		return p.Prompt, nil
	}

	s.log.Warn().Str("supplier", key).Msg("No prompt found, using fallback")
	return FallbackPrompt, nil
}

// Get returns the profile for supplier, active or not.
func (s *Store) Get(ctx context.Context, supplier string) (Profile, error) {
	const op = "Get"

	profiles, err := s.repo.Load(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	key := NormalizeKey(supplier)
	p, ok := profiles[key]
	if !ok {
		return Profile{}, fmt.Errorf("%s: %w: %s", op, ErrProfileNotFound, key)
	}
	p.Key = key
	return p, nil
}

// List returns profiles sorted by key, optionally including inactive ones.
func (s *Store) List(ctx context.Context, includeInactive bool) ([]Profile, error) {
	const op = "List"

	profiles, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	list := make([]Profile, 0, len(profiles))
	for key, p := range profiles {
		if !p.Active && !includeInactive {
			continue
		}
		p.Key = key
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}

// Add creates a new active profile. displayName defaults to supplier.
func (s *Store) Add(ctx context.Context, supplier, prompt, displayName string) (Profile, error) {
	const op = "Add"

	key := NormalizeKey(supplier)
	if key == "" {
		return Profile{}, fmt.Errorf("%s: %w", op, ErrInvalidKey)
	}
	if strings.TrimSpace(prompt) == "" {
		return Profile{}, fmt.Errorf("%s: %w", op, ErrEmptyPrompt)
	}

	var added Profile
	err := s.modify(ctx, func(profiles map[string]Profile) error {
		if _, ok := profiles[key]; ok {
			return fmt.Errorf("%w: %s", ErrProfileExists, key)
		}
		if displayName == "" {
			displayName = strings.TrimSpace(supplier)
		}
		ts := s.timestamp()
		added = Profile{
			Key:          key,
			Name:         displayName,
			Prompt:       prompt,
			Active:       true,
			Created:      ts,
			LastModified: ts,
		}
		profiles[key] = added
		return nil
	})
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().Str("supplier", key).Msg("Added supplier profile")
	return added, nil
}

// Update replaces the prompt text of an existing profile.
func (s *Store) Update(ctx context.Context, supplier, prompt string) error {
	const op = "Update"

	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyPrompt)
	}
	key := NormalizeKey(supplier)
	err := s.modify(ctx, func(profiles map[string]Profile) error {
		p, ok := profiles[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, key)
		}
		p.Prompt = prompt
		p.LastModified = s.timestamp()
		profiles[key] = p
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().Str("supplier", key).Msg("Updated supplier prompt")
	return nil
}

// Deactivate keeps the profile but stops Resolve from using it.
func (s *Store) Deactivate(ctx context.Context, supplier string) error {
	return s.setActive(ctx, "Deactivate", supplier, false)
}

// Activate re-enables a deactivated profile.
func (s *Store) Activate(ctx context.Context, supplier string) error {
	return s.setActive(ctx, "Activate", supplier, true)
}

func (s *Store) setActive(ctx context.Context, op, supplier string, active bool) error {
	key := NormalizeKey(supplier)
	err := s.modify(ctx, func(profiles map[string]Profile) error {
		p, ok := profiles[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, key)
		}
		p.Active = active
		p.LastModified = s.timestamp()
		profiles[key] = p
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().Str("supplier", key).Bool("active", active).Msg("Changed supplier profile state")
	return nil
}

// Remove deletes a profile. The default profile cannot be removed.
func (s *Store) Remove(ctx context.Context, supplier string) error {
	const op = "Remove"

	key := NormalizeKey(supplier)
	if key == DefaultKey {
		return fmt.Errorf("%s: %w", op, ErrDefaultProtected)
	}
	err := s.modify(ctx, func(profiles map[string]Profile) error {
		if _, ok := profiles[key]; !ok {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, key)
		}
		delete(profiles, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().Str("supplier", key).Msg("Removed supplier profile")
	return nil
}

func (s *Store) modify(ctx context.Context, fn func(map[string]Profile) error) error {
	profiles, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(profiles); err != nil {
		return err
	}
	return s.repo.Save(ctx, profiles)
}

// BuildExtractionPrompt combines the supplier prompt with the standard BOL
// extraction task and the document text.
func (s *Store) BuildExtractionPrompt(ctx context.Context, rawText, supplier string) (string, error) {
	supplierPrompt, err := s.Resolve(ctx, supplier)
	if err != nil {
		s.log.Warn().Err(err).Msg("Building prompt with fallback instructions")
	}
	return renderExtractionPrompt(supplierPrompt, truncateRunes(rawText, MaxDocumentChars)), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func renderExtractionPrompt(supplierPrompt, documentText string) string {
	var b strings.Builder

	b.WriteString("SUPPLIER-SPECIFIC INSTRUCTIONS:\n")
	b.WriteString(supplierPrompt)
	b.WriteString("\n\nSTANDARD BOL EXTRACTION TASK:\n")
	b.WriteString("Please analyze the following Bill of Lading (BOL) document text and extract the specified information into a JSON format.\n\n")

	b.WriteString("REQUIRED FIELDS TO EXTRACT:\n")
	for _, f := range requiredFields {
		fmt.Fprintf(&b, "- %s: %s\n", f.name, f.description)
	}

	b.WriteString("\nEXTRACTION RULES:\n")
	for i, rule := range extractionRules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}

	b.WriteString("\nDOCUMENT TEXT:\n")
	b.WriteString(documentText)
	b.WriteString("\n\nReturn the extracted data in this exact JSON format, with one entry per coil:\n")
	b.WriteString("{\n  \"coils\": [\n    {\n")
	for i, f := range requiredFields {
		sep := ","
		if i == len(requiredFields)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "      %q: \"\"%s\n", f.name, sep)
	}
	b.WriteString("    }\n  ]\n}\n")

	return b.String()
}

var requiredFields = []struct {
	name        string
	description string
}{
	{"BOL_NUMBER", "The Bill of Lading number/ID"},
	{"CUSTOMER_NAME", "Customer or consignee name"},
	{"VENDOR_NAME", "Vendor, shipper, or supplier name"},
	{"COIL_TAG#", "Coil tag number or material identifier"},
	{"MATERIAL", "Material type/description (steel, aluminum, etc.)"},
	{"WIDTH", "Material width (include units if available)"},
	{"THICKNESS", "Material thickness (include units if available)"},
	{"WEIGHT", "Coil weight (include units if available)"},
	{"NUMBER_OF_COILS", "Number of coils this entry covers"},
	{"DATE_RECEIVED", "Date the shipment was received"},
	{"HEAT_NUMBER", "Heat number or batch number"},
	{"CUSTOMER_PO", "Customer purchase order number"},
	{"NOTES", "Any additional notes or special instructions"},
}

var extractionRules = []string{
	"Follow the supplier-specific instructions above for this supplier",
	"Extract exact values as they appear in the document",
	`If a field is not found, use an empty string ""`,
	"For dates, use YYYY-MM-DD format when possible",
	`For measurements, include units (e.g., "12 inches", "2500 lbs")`,
	"Be case-sensitive for codes and numbers",
	`Look for alternative terms (e.g., "Consignee" for customer, "Shipper" for vendor)`,
}
