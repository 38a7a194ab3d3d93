package guichet

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/quillard/formulaire/archive"
	"github.com/quillard/formulaire/dbopen"
	"github.com/quillard/formulaire/dialog"
	"github.com/quillard/formulaire/docx"
	"github.com/quillard/formulaire/idgen"
	"github.com/quillard/formulaire/kit"
	"github.com/quillard/formulaire/session"
)

// Service is the fill-workflow orchestrator.
type Service struct {
	cfg    *Config
	store  *session.Store
	arc    *archive.Archive
	db     *sql.DB
	ownsDB bool
	logger *slog.Logger
	newID  idgen.Generator
}

// ServiceOption customises Service construction.
type ServiceOption func(*Service)

// WithDB injects an already-open archive database. The caller keeps
// ownership; Close will not close it.
func WithDB(db *sql.DB) ServiceOption {
	return func(s *Service) { s.db = db }
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(gen idgen.Generator) ServiceOption {
	return func(s *Service) { s.newID = gen }
}

// New creates a guichet Service. Unless WithDB is given, the archive
// database is opened at cfg.ArchiveDB.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		cfg:    cfg,
		logger: logger,
		newID:  idgen.Prefixed("sess_", idgen.NanoID(16)),
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.db == nil {
		db, err := dbopen.Open(cfg.ArchiveDB, dbopen.WithMkdirAll())
		if err != nil {
			return nil, fmt.Errorf("guichet: open archive db: %w", err)
		}
		svc.db = db
		svc.ownsDB = true
	}

	svc.arc = archive.New(svc.db, cfg.UploadsDir)
	if err := svc.arc.Init(); err != nil {
		if svc.ownsDB {
			svc.db.Close()
		}
		return nil, err
	}

	svc.store = session.NewStore(session.Options{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
	})
	return svc, nil
}

// log returns the service logger enriched with request identity from ctx:
// the serving transport, and the trace and session IDs when set.
func (s *Service) log(ctx context.Context) *slog.Logger {
	l := s.logger.With("transport", kit.GetTransport(ctx))
	if id := kit.GetTraceID(ctx); id != "" {
		l = l.With("trace_id", id)
	}
	if id := kit.GetSessionID(ctx); id != "" {
		l = l.With("session_id", id)
	}
	return l
}

// Close releases the session store and, when owned, the archive database.
func (s *Service) Close() error {
	s.store.Close()
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// UploadResult is the response to a template upload.
type UploadResult struct {
	SessionID    string               `json:"session_id"`
	Placeholders []dialog.Placeholder `json:"placeholders"`
	Prompt       string               `json:"prompt"`
}

// ChatResult is the response to one chat turn.
type ChatResult struct {
	Reply           string               `json:"reply"`
	Placeholders    []dialog.Placeholder `json:"placeholders"`
	Done            bool                 `json:"done"`
	ReadyToGenerate bool                 `json:"ready_to_generate"`
}

// GenerateResult carries the completed document.
type GenerateResult struct {
	Filename string
	Data     []byte
}

// acceptedContentTypes lists the generic archive/binary types accepted for
// an upload besides the wordprocessingml types.
var acceptedContentTypes = map[string]bool{
	"application/octet-stream":     true,
	"application/zip":              true,
	"application/x-zip-compressed": true,
}

func acceptableUpload(filename, contentType string) bool {
	if !strings.EqualFold(filepath.Ext(filename), ".docx") {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.Contains(ct, "wordprocessingml") || acceptedContentTypes[ct]
}

// Upload validates and normalizes a template, creates a session, and
// returns the first prompt.
//
// Errors: ErrInvalidUpload for the wrong extension or content type;
// docx.ErrMalformedPackage and docx.ErrNoPlaceholders pass through.
func (s *Service) Upload(ctx context.Context, filename, contentType string, data []byte) (*UploadResult, error) {
	if !acceptableUpload(filename, contentType) {
		return nil, fmt.Errorf("%w: got %q (%s)", ErrInvalidUpload, filename, contentType)
	}

	normalized, names, err := docx.Normalize(data)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:           s.newID(),
		Package:      normalized,
		Placeholders: dialog.NewPlaceholders(names),
	}
	s.store.Put(sess)

	s.log(ctx).Info("template uploaded",
		"session_id", sess.ID,
		"filename", filename,
		"placeholders", len(names))

	return &UploadResult{
		SessionID:    sess.ID,
		Placeholders: snapshot(sess.Placeholders),
		Prompt:       dialog.NextQuestion(sess.Placeholders),
	}, nil
}

// Chat applies one turn of the fill conversation. While placeholders remain
// the message fills the current one; afterwards a confirming message flips
// ReadyToGenerate.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return nil, ErrUnknownSession
	}
	ctx = kit.WithSessionID(ctx, sessionID)

	res := &ChatResult{}
	if dialog.Current(sess.Placeholders) >= 0 {
		dialog.ApplyAnswer(sess.Placeholders, message)
		res.Reply = dialog.NextQuestion(sess.Placeholders)
	} else if dialog.IsConfirmation(message) {
		res.ReadyToGenerate = true
		res.Reply = "Generating your document now."
	} else {
		res.Reply = dialog.NextQuestion(sess.Placeholders)
	}

	res.Done = dialog.Current(sess.Placeholders) < 0
	res.Placeholders = snapshot(sess.Placeholders)

	s.log(ctx).Debug("chat turn",
		"filled", sess.Filled(),
		"total", len(sess.Placeholders),
		"ready", res.ReadyToGenerate)
	return res, nil
}

// Generate renders the completed document, archives it, and returns the
// bytes for download.
func (s *Service) Generate(ctx context.Context, sessionID string) (*GenerateResult, error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return nil, ErrUnknownSession
	}
	ctx = kit.WithSessionID(ctx, sessionID)
	if dialog.Current(sess.Placeholders) >= 0 {
		return nil, fmt.Errorf("%w: %d of %d filled",
			ErrNotReady, sess.Filled(), len(sess.Placeholders))
	}

	out, err := docx.Render(sess.Package, dialog.Values(sess.Placeholders))
	if err != nil {
		return nil, fmt.Errorf("guichet: generate: %w", err)
	}

	rec := &archive.Record{
		SessionID:        sess.ID,
		PlaceholderCount: len(sess.Placeholders),
	}
	if err := s.arc.Save(ctx, rec, out); err != nil {
		return nil, err
	}

	s.log(ctx).Info("document generated",
		"filename", rec.Filename,
		"size_bytes", rec.SizeBytes)

	return &GenerateResult{Filename: rec.Filename, Data: out}, nil
}

// History lists archived generations, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]archive.Record, error) {
	return s.arc.List(ctx, limit)
}

// snapshot copies the placeholder slice so callers cannot mutate session
// state through a response.
func snapshot(ps []dialog.Placeholder) []dialog.Placeholder {
	out := make([]dialog.Placeholder, len(ps))
	copy(out, ps)
	return out
}
