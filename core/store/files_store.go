package store

import (
	"context"
	"database/sql"
	"time"

	"reportdesk/core/utils"
)

type FilesStore interface {
	AddFile(ctx context.Context, f *RelatedFile) error
	ListFiles(ctx context.Context, incidentID string) ([]RelatedFile, error)
	GetFile(ctx context.Context, id string) (*RelatedFile, error)
	DeleteFile(ctx context.Context, id string) error
}

type filesStore struct {
	db *sql.DB
}

func NewFilesStore(db *sql.DB) FilesStore {
	return &filesStore{db: db}
}

func (s *filesStore) AddFile(ctx context.Context, f *RelatedFile) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return insertFileTx(ctx, tx, f)
	})
}

// ListFiles returns metadata only; Data stays empty.
func (s *filesStore) ListFiles(ctx context.Context, incidentID string) ([]RelatedFile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, incident_id, filename, mimetype, size, uploader_id, created_at FROM related_files WHERE incident_id=? ORDER BY created_at, id`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []RelatedFile
	for rows.Next() {
		var f RelatedFile
		var uploader sql.NullString
		if err := rows.Scan(&f.ID, &f.IncidentID, &f.Filename, &f.MimeType, &f.Size, &uploader, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.UploaderID = stringPtr(uploader)
		res = append(res, f)
	}
	return res, rows.Err()
}

func (s *filesStore) GetFile(ctx context.Context, id string) (*RelatedFile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, incident_id, filename, mimetype, size, data, uploader_id, created_at FROM related_files WHERE id=?`, id)
	var f RelatedFile
	var uploader sql.NullString
	if err := row.Scan(&f.ID, &f.IncidentID, &f.Filename, &f.MimeType, &f.Size, &f.Data, &uploader, &f.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	f.UploaderID = stringPtr(uploader)
	return &f, nil
}

func (s *filesStore) DeleteFile(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM related_files WHERE id=?`, id)
	return err
}

func insertFileTx(ctx context.Context, tx *sql.Tx, f *RelatedFile) error {
	if f.ID == "" {
		f.ID = utils.NewID()
	}
	f.Size = int64(len(f.Data))
	f.CreatedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx, `INSERT INTO related_files(id, incident_id, filename, mimetype, size, data, uploader_id, created_at) VALUES(?,?,?,?,?,?,?,?)`,
		f.ID, f.IncidentID, f.Filename, f.MimeType, f.Size, f.Data, nullableString(f.UploaderID), f.CreatedAt)
	return err
}
