package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/saves"
)

// BackupSchemaVersion is written into every backup header.
const BackupSchemaVersion = "1.0"

// maxLine bounds one JSONL record; a long adventure log can be large.
const maxLine = 16 << 20

// BackupHeader is the first line of a backup file.
type BackupHeader struct {
	ForgeBackup   bool   `json:"_forge_backup"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
	Count         int    `json:"count"`
}

// ExportBackup writes every save slot to a JSONL file: a header line, then
// one slot per line.
func ExportBackup(ctx context.Context, repo *saves.Repository, policy Policy, path string) (*Output, error) {
	now := time.Now()
	if path == "" {
		path = filepath.Join(policy.ExportsDir, fmt.Sprintf("saves-%s.jsonl", now.Format("2006-01-02T150405")))
	}
	if err := policy.Validate(path, PathCheckWrite, ".jsonl"); err != nil {
		return nil, err
	}

	slots, err := repo.List(ctx)
	if err != nil && !errors.Is(err, errors.ErrStorageCorrupted) {
		return nil, err
	}

	err = writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		if err := enc.Encode(BackupHeader{
			ForgeBackup:   true,
			SchemaVersion: BackupSchemaVersion,
			ExportedAt:    now.Unix(),
			Count:         len(slots),
		}); err != nil {
			return err
		}
		for _, s := range slots {
			if ctx.Err() != nil {
				return errors.NewCancelled("export backup")
			}
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Output{Path: path, Count: len(slots), ExportedAt: now.Unix()}, nil
}

// ImportInput contains parameters for ImportBackup.
type ImportInput struct {
	Path string
	Mode saves.MergeMode // default: error
}

// ImportOutput reports what an import did.
type ImportOutput struct {
	saves.MergeResult
	Errors []LineError `json:"errors"`
	// Warning is set when the existing collection was corrupted and has been
	// quarantined before the merge.
	Warning string `json:"warning,omitempty"`
}

// LineError describes one rejected backup line.
type LineError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportBackup reads a backup file and merges its slots into the
// repository in one write.
//
// In error mode any bad line or id collision aborts the import with nothing
// written, and the problems are listed in the output. In replace and skip
// modes bad lines are reported and the rest is imported.
func ImportBackup(ctx context.Context, repo *saves.Repository, policy Policy, in ImportInput) (*ImportOutput, error) {
	if in.Mode == "" {
		in.Mode = saves.MergeError
	}
	if _, err := saves.ParseMergeMode(string(in.Mode)); err != nil {
		return nil, err
	}
	if err := policy.Validate(in.Path, PathCheckRead, ".jsonl"); err != nil {
		return nil, err
	}

	f, err := openNoFollow(in.Path)
	if err != nil {
		return nil, errors.As(err)
	}
	defer f.Close()

	slots, lineErrs := parseBackup(f)
	out := &ImportOutput{Errors: lineErrs}
	if in.Mode == saves.MergeError && len(lineErrs) > 0 {
		return out, nil
	}

	res, err := repo.Merge(ctx, slots, in.Mode)
	if warn := errors.As(repo.TakeWarning()); warn != nil {
		out.Warning = warn.Message
	}
	if err != nil {
		if fe := errors.As(err); fe.Code == errors.ErrInvalidRequest && in.Mode == saves.MergeError {
			out.Errors = append(out.Errors, LineError{Code: "ID_COLLISION", Message: fe.Message})
			return out, nil
		}
		return nil, err
	}
	out.MergeResult = res
	return out, nil
}

func parseBackup(r io.Reader) ([]game.SaveData, []LineError) {
	var slots []game.SaveData
	var errs []LineError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var header struct {
			ForgeBackup bool `json:"_forge_backup"`
		}
		if err := json.Unmarshal(raw, &header); err != nil {
			errs = append(errs, LineError{Line: line, Code: "PARSE_ERROR", Message: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}
		if header.ForgeBackup {
			continue
		}

		var s game.SaveData
		if err := json.Unmarshal(raw, &s); err != nil {
			errs = append(errs, LineError{Line: line, Code: "PARSE_ERROR", Message: fmt.Sprintf("invalid save slot: %v", err)})
			continue
		}
		switch {
		case s.ID == "" || s.Character == nil:
			errs = append(errs, LineError{Line: line, ID: s.ID, Code: "INVALID_RECORD", Message: "id and character are required"})
		case s.Character.ID != s.ID:
			errs = append(errs, LineError{Line: line, ID: s.ID, Code: "INVALID_RECORD", Message: "character id does not match slot id"})
		case !s.Phase.Valid():
			errs = append(errs, LineError{Line: line, ID: s.ID, Code: "INVALID_RECORD", Message: fmt.Sprintf("unknown phase %q", s.Phase)})
		default:
			slots = append(slots, s)
		}
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, LineError{Line: line + 1, Code: "READ_ERROR", Message: fmt.Sprintf("failed to read file: %v", err)})
	}
	return slots, errs
}
