package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// SnapshotBody is the wire representation of a backup Snapshot.
type SnapshotBody struct {
	// ID is only populated for a snapshot just created in this request;
	// snapshots reconstructed from on-disk listing have no assigned ID.
	ID        string    `json:"id,omitempty"`
	Path      string    `json:"path"`
	Prefix    string    `json:"prefix"`
	Ext       string    `json:"ext"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateBackupOutput is the response for triggering a backup snapshot.
type CreateBackupOutput struct {
	Body SnapshotBody
}

// CreateBackup takes an immediate database snapshot, outside the worker's
// periodic schedule.
func (h *Handlers) CreateBackup(ctx context.Context, _ *struct{}) (*CreateBackupOutput, error) {
	if h.BackupEngine == nil {
		return nil, huma.Error503ServiceUnavailable("backup engine is not configured")
	}
	snap, err := h.BackupEngine.Create(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("creating backup", err)
	}
	return &CreateBackupOutput{Body: SnapshotBody{ID: snap.ID, Path: snap.Path, Prefix: snap.Prefix, Ext: snap.Ext, Timestamp: snap.Timestamp}}, nil
}

// ListBackupsOutput is the response for listing local backup snapshots.
type ListBackupsOutput struct {
	Body struct {
		Snapshots []SnapshotBody `json:"snapshots"`
	}
}

// ListBackups lists locally retained backup snapshots, newest first.
func (h *Handlers) ListBackups(ctx context.Context, _ *struct{}) (*ListBackupsOutput, error) {
	if h.BackupEngine == nil {
		return nil, huma.Error503ServiceUnavailable("backup engine is not configured")
	}
	snaps, err := h.BackupEngine.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("listing backups", err)
	}
	out := &ListBackupsOutput{}
	for _, s := range snaps {
		out.Body.Snapshots = append(out.Body.Snapshots, SnapshotBody{Path: s.Path, Prefix: s.Prefix, Ext: s.Ext, Timestamp: s.Timestamp})
	}
	return out, nil
}

// RestoreBackupInput identifies a local snapshot path to restore from.
type RestoreBackupInput struct {
	Body struct {
		Path  string `json:"path" minLength:"1"`
		Force bool   `json:"force" doc:"Must be true; restoring overwrites the live database"`
	}
}

// RestoreBackupOutput is an empty response.
type RestoreBackupOutput struct{}

// RestoreBackup restores the live database from a local snapshot. The
// process should be restarted after a successful restore, since the
// on-disk file underneath the open *sql.DB handle has changed.
func (h *Handlers) RestoreBackup(ctx context.Context, in *RestoreBackupInput) (*RestoreBackupOutput, error) {
	if h.BackupEngine == nil {
		return nil, huma.Error503ServiceUnavailable("backup engine is not configured")
	}
	if err := h.BackupEngine.Restore(ctx, in.Body.Path, in.Body.Force); err != nil {
		return nil, huma.Error400BadRequest("restoring backup", err)
	}
	return &RestoreBackupOutput{}, nil
}

// VerifyBackupInput identifies a local snapshot path to verify.
type VerifyBackupInput struct {
	Path string `query:"path"`
}

// VerifyBackupOutput reports whether a snapshot decompresses cleanly.
type VerifyBackupOutput struct {
	Body struct {
		Valid bool   `json:"valid"`
		Error string `json:"error,omitempty"`
	}
}

// VerifyBackup checks that a snapshot file is a readable, non-empty backup
// without touching the live database.
func (h *Handlers) VerifyBackup(ctx context.Context, in *VerifyBackupInput) (*VerifyBackupOutput, error) {
	if h.BackupEngine == nil {
		return nil, huma.Error503ServiceUnavailable("backup engine is not configured")
	}
	out := &VerifyBackupOutput{}
	if err := h.BackupEngine.Verify(in.Path); err != nil {
		out.Body.Error = err.Error()
	} else {
		out.Body.Valid = true
	}
	return out, nil
}
