package documents

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/anketa/pkg/room"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

// MaxFileSize is the per-file upload cap (§4.8 "Documents").
const MaxFileSize = 10 * 1024 * 1024

// MaxFilesPerSession bounds total accumulated uploads, not just the
// current batch (§4.8 "up to 5 files total per session").
const MaxFilesPerSession = 5

// maxFilenameCollisionAttempts caps the dedup-suffix search.
const maxFilenameCollisionAttempts = 100

// Upload is one incoming file before it is saved to disk.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// OrchestratorNotifier is the narrow surface Pipeline needs to kick an
// immediate extraction once a session's document context changes,
// satisfied by pkg/orchestrator.Session.
type OrchestratorNotifier interface {
	OnDocumentContextUpdated(ctx context.Context)
}

// Result summarizes a successful upload batch for the HTTP response.
type Result struct {
	SavedFiles []string
	Context    *store.DocumentContext
}

// Pipeline wires upload sanitization, parsing, and analysis into the
// persisted DocumentContext, room-metadata ping, and extraction kick
// described by §4.9.
type Pipeline struct {
	baseDir  string
	parser   *Parser
	analyzer *Analyzer
	store    *store.Store
	rooms    *room.Manager
	log      *slog.Logger
}

// New builds a Pipeline rooted at baseDir (typically "data/uploads").
func New(baseDir string, st *store.Store, rooms *room.Manager) *Pipeline {
	return &Pipeline{
		baseDir:  baseDir,
		parser:   NewParser(),
		analyzer: NewAnalyzer(),
		store:    st,
		rooms:    rooms,
		log:      slog.With("component", "documents.pipeline"),
	}
}

// Upload validates, saves, parses, and analyzes uploads for sessionID,
// persists the resulting DocumentContext, pings the live room's
// metadata, and (if orch is non-nil) kicks an immediate background
// extraction. orch is nil-safe: callers without a live voice session
// for this upload (e.g. uploads before the agent has joined) just skip
// that step.
func (p *Pipeline) Upload(ctx context.Context, sessionID string, uploads []Upload, orch OrchestratorNotifier) (*Result, error) {
	if len(uploads) > MaxFilesPerSession {
		return nil, fmt.Errorf("documents: maximum %d files per session", MaxFilesPerSession)
	}

	sessionDir := filepath.Join(p.baseDir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("documents: create upload dir: %w", err)
	}

	existing, err := os.ReadDir(sessionDir)
	if err != nil {
		return nil, fmt.Errorf("documents: list upload dir: %w", err)
	}
	if len(existing)+len(uploads) > MaxFilesPerSession {
		return nil, fmt.Errorf("documents: maximum %d files per session (already have %d)", MaxFilesPerSession, len(existing))
	}

	var saved []string
	destPaths := make([]string, 0, len(uploads))
	filenames := make([]string, 0, len(uploads))

	for i, u := range uploads {
		ext := strings.ToLower(filepath.Ext(u.Filename))
		if !SupportedExtensions[ext] {
			return nil, fmt.Errorf("documents: unsupported file type %q", ext)
		}
		if !ValidateMIME(ext, u.ContentType) {
			return nil, fmt.Errorf("documents: MIME type %q not allowed for %s", u.ContentType, ext)
		}
		if len(u.Content) > MaxFileSize {
			return nil, fmt.Errorf("documents: %s exceeds %d MB limit", u.Filename, MaxFileSize/(1024*1024))
		}

		safeName := sanitizeFilename(u.Filename, i, ext)
		destPath, err := resolveCollision(sessionDir, safeName)
		if err != nil {
			return nil, err
		}

		if err := os.WriteFile(destPath, u.Content, 0o644); err != nil {
			return nil, fmt.Errorf("documents: write %s: %w", safeName, err)
		}
		saved = append(saved, filepath.Base(destPath))
		destPaths = append(destPaths, destPath)
		filenames = append(filenames, u.Filename)
	}

	// Parsing each file is CPU-bound and independent of the others, so
	// the batch runs concurrently instead of one file at a time.
	docs := make([]*ParsedDocument, len(destPaths))
	var g errgroup.Group
	for i, destPath := range destPaths {
		i, destPath, filename := i, destPath, filenames[i]
		g.Go(func() error {
			docs[i] = p.parser.Parse(destPath)
			if docs[i] != nil {
				p.log.Info("document_parsed", "filename", filename, "chunks", len(docs[i].Chunks))
			} else {
				p.log.Warn("document_parse_failed", "filename", filename)
			}
			return nil
		})
	}
	_ = g.Wait()

	parsed := make([]*ParsedDocument, 0, len(docs))
	for _, doc := range docs {
		if doc != nil {
			parsed = append(parsed, doc)
		}
	}

	if len(parsed) == 0 {
		return nil, fmt.Errorf("documents: no documents could be parsed")
	}

	docContext, err := p.analyzer.Analyze(parsed)
	if err != nil {
		return nil, fmt.Errorf("documents: analysis failed: %w", err)
	}

	if p.store != nil {
		if err := p.store.UpdateDocumentContext(ctx, sessionID, docContext); err != nil {
			return nil, fmt.Errorf("documents: persist context: %w", err)
		}
	}

	p.notifyRoom(ctx, sessionID, len(parsed), docContext)

	if orch != nil {
		go orch.OnDocumentContextUpdated(context.WithoutCancel(ctx))
	}

	p.log.Info("documents_uploaded_and_analyzed", "session_id", sessionID, "files", saved,
		"key_facts", len(docContext.KeyFacts), "services", len(docContext.ServicesMentioned))

	return &Result{SavedFiles: saved, Context: docContext}, nil
}

func (p *Pipeline) notifyRoom(ctx context.Context, sessionID string, docCount int, docContext *store.DocumentContext) {
	if p.rooms == nil {
		return
	}
	metadata := fmt.Sprintf(
		`{"document_context_updated":true,"document_count":%d,"key_facts_count":%d}`,
		docCount, len(docContext.KeyFacts),
	)
	roomName := "consultation-" + sessionID
	if err := p.rooms.UpdateRoomMetadata(ctx, roomName, metadata); err != nil {
		p.log.Warn("failed_to_notify_agent_about_documents", "session_id", sessionID, "error", err)
	}
}

// sanitizeFilename strips directory components. A name that is empty
// or starts with a dot is not trimmed: it is replaced as a whole by a
// generated upload_<index><ext> name.
func sanitizeFilename(filename string, index int, ext string) string {
	base := filepath.Base(filename)
	if base == "" || base == "." || base == string(filepath.Separator) || strings.HasPrefix(base, ".") {
		return fmt.Sprintf("upload_%d%s", index, ext)
	}
	return base
}

// resolveCollision finds a non-existent path in dir for name, appending
// a counter suffix on collision (caps at maxFilenameCollisionAttempts).
func resolveCollision(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for counter := 1; counter < maxFilenameCollisionAttempts; counter++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("documents: too many filename collisions for %q", name)
}
