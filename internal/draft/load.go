package draft

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type fileDraft struct {
	ContestID         string           `toml:"contest_id"`
	Title             string           `toml:"title"`
	Description       string           `toml:"description"`
	ProductionProcess string           `toml:"production_process"`
	AITools           []string         `toml:"ai_tools"`
	Agreed            bool             `toml:"agreed"`
	Video             string           `toml:"video"`
	Thumbnail         string           `toml:"thumbnail"`
	BonusEntries      []fileBonusEntry `toml:"bonus_entries"`
}

type fileBonusEntry struct {
	BonusConfigID string `toml:"bonus_config_id"`
	SNSURL        string `toml:"sns_url"`
	Proof         string `toml:"proof"`
}

// Load reads a draft description from a TOML file. File references are
// resolved relative to the draft file's directory, so a draft can travel
// with its assets.
func Load(path string) (*Draft, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read draft file: %w", err)
	}

	var parsed fileDraft
	if err := toml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse draft file: %w", err)
	}

	base := filepath.Dir(path)
	d := &Draft{
		ContestID:         strings.TrimSpace(parsed.ContestID),
		Title:             strings.TrimSpace(parsed.Title),
		Description:       strings.TrimSpace(parsed.Description),
		ProductionProcess: strings.TrimSpace(parsed.ProductionProcess),
		AITools:           parsed.AITools,
		Agreed:            parsed.Agreed,
	}

	if parsed.Video != "" {
		if d.Video, err = FromPath(resolve(base, parsed.Video)); err != nil {
			return nil, fmt.Errorf("load video: %w", err)
		}
	}
	if parsed.Thumbnail != "" {
		if d.Thumbnail, err = FromPath(resolve(base, parsed.Thumbnail)); err != nil {
			return nil, fmt.Errorf("load thumbnail: %w", err)
		}
	}

	for i, entry := range parsed.BonusEntries {
		bonus := BonusEntry{
			BonusConfigID: strings.TrimSpace(entry.BonusConfigID),
			SNSURL:        strings.TrimSpace(entry.SNSURL),
		}
		if entry.Proof != "" {
			proof, err := FromPath(resolve(base, entry.Proof))
			if err != nil {
				return nil, fmt.Errorf("load bonus entry %d proof: %w", i+1, err)
			}
			bonus.Proof = proof
		}
		d.BonusEntries = append(d.BonusEntries, bonus)
	}

	return d, nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
