package definition

import (
	"encoding/json"
	"fmt"
)

// Volume source types.
const (
	SourceS3          = "s3"
	SourceLocalSecret = "local-secret"
)

// VolumeSource names the default content of a volume.
type VolumeSource struct {
	Type  string   `json:"type"`
	S3ID  string   `json:"s3Id,omitempty"`
	Files []string `json:"files,omitempty"`
}

func (s *VolumeSource) validate() error {
	switch s.Type {
	case SourceS3:
		if s.S3ID == "" {
			return fmt.Errorf("s3 source requires s3Id")
		}
	case SourceLocalSecret:
		if len(s.Files) == 0 {
			return fmt.Errorf("local-secret source requires files")
		}
	default:
		return fmt.Errorf("unknown source: %s", s.Type)
	}
	return nil
}

// VolumeDefinition declares a volume role and where its initial data comes from.
type VolumeDefinition struct {
	Name   string        `json:"name"`
	Owner  string        `json:"owner,omitempty"`
	Source *VolumeSource `json:"source,omitempty"`
}

// UnmarshalJSON validates the source as it is decoded.
func (v *VolumeDefinition) UnmarshalJSON(data []byte) error {
	type plain VolumeDefinition
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("volume definition requires a name")
	}
	if p.Source != nil {
		if err := p.Source.validate(); err != nil {
			return fmt.Errorf("volume %s: %w", p.Name, err)
		}
	}
	*v = VolumeDefinition(p)
	return nil
}

// Volumes loads environments/volumes.json. A missing file means no volumes.
func (s *Store) Volumes() ([]VolumeDefinition, error) {
	path, err := s.find("environments", "volumes")
	if err != nil {
		return nil, nil
	}
	var defs []VolumeDefinition
	if err := decodeFile(path, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}
