package draft

import (
	"fmt"
	"slices"
	"strings"

	"entryway/internal/config"
	"entryway/internal/services"
)

// Validate checks the draft against the configured file limits and required
// fields. Violations are validation errors; a draft that fails here never
// starts a run and never issues a network call.
func (d *Draft) Validate(limits config.Limits) error {
	if d == nil {
		return services.Wrap(services.ErrValidation, "draft", "validate", "draft is required", nil)
	}
	if strings.TrimSpace(d.ContestID) == "" {
		return fieldRequired("contest id")
	}
	if strings.TrimSpace(d.Title) == "" {
		return fieldRequired("title")
	}
	if strings.TrimSpace(d.Description) == "" {
		return fieldRequired("description")
	}
	if !d.Agreed {
		return services.Wrap(services.ErrValidation, "draft", "validate", "the contest agreement must be accepted", nil)
	}
	if d.Video == nil {
		return fieldRequired("video file")
	}
	if d.Thumbnail == nil {
		return fieldRequired("thumbnail file")
	}

	if err := checkFile("video", d.Video, limits.VideoMaxBytes, limits.VideoMIMETypes); err != nil {
		return err
	}
	if err := checkFile("thumbnail", d.Thumbnail, limits.ImageMaxBytes, limits.ImageMIMETypes); err != nil {
		return err
	}
	for i := range d.BonusEntries {
		entry := &d.BonusEntries[i]
		if strings.TrimSpace(entry.BonusConfigID) == "" && entry.Qualifies() {
			return services.Wrap(services.ErrValidation, "draft", "validate",
				fmt.Sprintf("bonus entry %d is missing its bonus config id", i+1), nil)
		}
		if entry.Proof == nil {
			continue
		}
		label := fmt.Sprintf("bonus proof %d", i+1)
		if err := checkFile(label, entry.Proof, limits.ImageMaxBytes, limits.ImageMIMETypes); err != nil {
			return err
		}
	}
	return nil
}

func checkFile(label string, file *File, maxBytes int64, allowedMIMEs []string) error {
	if file.Size <= 0 {
		return services.Wrap(services.ErrValidation, "draft", "validate",
			fmt.Sprintf("%s file %q is empty", label, file.Name), nil)
	}
	if file.Size > maxBytes {
		return services.Wrap(services.ErrValidation, "draft", "validate",
			fmt.Sprintf("%s file %q is %d bytes; the limit is %d bytes", label, file.Name, file.Size, maxBytes), nil)
	}
	mimeType := strings.ToLower(strings.TrimSpace(file.MIME))
	if !slices.Contains(allowedMIMEs, mimeType) {
		return services.Wrap(services.ErrValidation, "draft", "validate",
			fmt.Sprintf("%s file %q has unsupported type %q", label, file.Name, file.MIME), nil)
	}
	return nil
}

func fieldRequired(name string) error {
	return services.Wrap(services.ErrValidation, "draft", "validate", name+" is required", nil)
}
