package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/workbench/internal/domain"
	"github.com/soyeahso/workbench/internal/logging"
)

// PresetStore persists preset queries.
type PresetStore struct {
	db  *DB
	log *logging.Logger
	now func() time.Time
}

// NewPresetStore creates a preset store over db.
func NewPresetStore(db *DB) *PresetStore {
	return &PresetStore{
		db:  db,
		log: db.log.Sub("presets"),
		now: time.Now,
	}
}

const presetColumns = `id, label, query, selected_servers, selected_tools, selected_folder,
	agent_mode, llm_config, is_predefined, created_by, created_at, updated_at`

// Create validates and inserts a new preset.
func (s *PresetStore) Create(in domain.PresetInput) (*domain.Preset, error) {
	if in.AgentMode == "" {
		in.AgentMode = domain.DefaultAgentMode
	}
	if err := in.Validate(false); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &domain.Preset{
		ID:              uuid.New().String(),
		SelectedServers: []string{},
		IsPredefined:    in.IsPredefined,
		CreatedBy:       in.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	in.Apply(p)

	if err := s.insert(p); err != nil {
		return nil, err
	}
	s.log.Debug().Str("id", p.ID).Str("label", p.Label).Msg("preset created")
	return p, nil
}

func (s *PresetStore) insert(p *domain.Preset) error {
	servers, tools, llm, err := encodePresetJSON(p)
	if err != nil {
		return err
	}
	_, err = s.db.sql.Exec(`
		INSERT INTO preset_queries (`+presetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Label, p.Query, servers, tools, nullString(p.SelectedFolder),
		string(p.AgentMode), llm, p.IsPredefined, p.CreatedBy,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting preset: %w", err)
	}
	return nil
}

// Get returns the preset with the given id.
func (s *PresetStore) Get(id string) (*domain.Preset, error) {
	row := s.db.sql.QueryRow(`SELECT `+presetColumns+` FROM preset_queries WHERE id = ?`, id)
	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preset %s: %w", id, ErrNotFound)
	}
	return p, err
}

// Update merges in into the stored preset. Empty fields are left unchanged
// and the mode's folder rule is checked against the merged result.
func (s *PresetStore) Update(id string, in domain.PresetInput) (*domain.Preset, error) {
	if err := in.Validate(true); err != nil {
		return nil, err
	}
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	in.Apply(p)
	if err := p.CheckFolder(); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()

	servers, tools, llm, err := encodePresetJSON(p)
	if err != nil {
		return nil, err
	}
	_, err = s.db.sql.Exec(`
		UPDATE preset_queries
		SET label = ?, query = ?, selected_servers = ?, selected_tools = ?,
			selected_folder = ?, agent_mode = ?, llm_config = ?, updated_at = ?
		WHERE id = ?`,
		p.Label, p.Query, servers, tools, nullString(p.SelectedFolder),
		string(p.AgentMode), llm, formatTime(p.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating preset: %w", err)
	}
	return p, nil
}

// Delete removes a user preset. Predefined presets are refused.
func (s *PresetStore) Delete(id string) error {
	p, err := s.Get(id)
	if err != nil {
		return err
	}
	if p.IsPredefined {
		return fmt.Errorf("preset %q: %w", p.Label, ErrPredefined)
	}
	if _, err := s.db.sql.Exec(`DELETE FROM preset_queries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting preset: %w", err)
	}
	s.log.Debug().Str("id", id).Msg("preset deleted")
	return nil
}

// List returns a page of presets, predefined first then most recently
// updated, and the total count. A limit of zero or less returns all.
func (s *PresetStore) List(limit, offset int) ([]domain.Preset, int, error) {
	var total int
	if err := s.db.sql.QueryRow(`SELECT COUNT(*) FROM preset_queries`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting presets: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.sql.Query(`
		SELECT `+presetColumns+` FROM preset_queries
		ORDER BY is_predefined DESC, updated_at DESC, label
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing presets: %w", err)
	}
	defer rows.Close()

	presets := []domain.Preset{}
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, 0, err
		}
		presets = append(presets, *p)
	}
	return presets, total, rows.Err()
}

// SeedPredefined inserts each predefined preset whose label is not already
// stored. It returns how many were added.
func (s *PresetStore) SeedPredefined(inputs []domain.PresetInput) (int, error) {
	added := 0
	for _, in := range inputs {
		var exists int
		err := s.db.sql.QueryRow(
			`SELECT COUNT(*) FROM preset_queries WHERE is_predefined = 1 AND label = ?`, in.Label,
		).Scan(&exists)
		if err != nil {
			return added, fmt.Errorf("checking preset %q: %w", in.Label, err)
		}
		if exists > 0 {
			continue
		}
		in.IsPredefined = true
		if in.CreatedBy == "" {
			in.CreatedBy = "system"
		}
		if _, err := s.Create(in); err != nil {
			return added, fmt.Errorf("seeding preset %q: %w", in.Label, err)
		}
		added++
	}
	if added > 0 {
		s.log.Info().Int("count", added).Msg("seeded predefined presets")
	}
	return added, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreset(sc scanner) (*domain.Preset, error) {
	var (
		p                  domain.Preset
		servers, tools     string
		folder, llm        sql.NullString
		mode               string
		createdAt, updated string
	)
	err := sc.Scan(&p.ID, &p.Label, &p.Query, &servers, &tools, &folder,
		&mode, &llm, &p.IsPredefined, &p.CreatedBy, &createdAt, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning preset: %w", err)
	}

	if err := json.Unmarshal([]byte(servers), &p.SelectedServers); err != nil {
		return nil, fmt.Errorf("decoding selected_servers of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(tools), &p.SelectedTools); err != nil {
		return nil, fmt.Errorf("decoding selected_tools of %s: %w", p.ID, err)
	}
	if len(p.SelectedTools) == 0 {
		p.SelectedTools = nil
	}
	if llm.Valid && llm.String != "" {
		p.LLMConfig = &domain.LLMConfig{}
		if err := json.Unmarshal([]byte(llm.String), p.LLMConfig); err != nil {
			return nil, fmt.Errorf("decoding llm_config of %s: %w", p.ID, err)
		}
	}
	p.SelectedFolder = folder.String
	p.AgentMode = domain.AgentMode(mode)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func encodePresetJSON(p *domain.Preset) (servers, tools string, llm sql.NullString, err error) {
	srv := p.SelectedServers
	if srv == nil {
		srv = []string{}
	}
	b, err := json.Marshal(srv)
	if err != nil {
		return "", "", llm, fmt.Errorf("encoding selected_servers: %w", err)
	}
	servers = string(b)

	tl := p.SelectedTools
	if tl == nil {
		tl = []string{}
	}
	if b, err = json.Marshal(tl); err != nil {
		return "", "", llm, fmt.Errorf("encoding selected_tools: %w", err)
	}
	tools = string(b)

	if p.LLMConfig != nil {
		if b, err = json.Marshal(p.LLMConfig); err != nil {
			return "", "", llm, fmt.Errorf("encoding llm_config: %w", err)
		}
		llm = sql.NullString{String: string(b), Valid: true}
	}
	return servers, tools, llm, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
