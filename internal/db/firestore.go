package db

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/studentkit/internal/config"
)

var _ Store = (*FirestoreStore)(nil)

// FirebaseClients bundles the clients created from one Firebase app.
type FirebaseClients struct {
	App       *firebase.App
	Firestore *firestore.Client
	Auth      *auth.Client
}

// Close releases the Firestore connection.
func (c *FirebaseClients) Close() error {
	if c.Firestore != nil {
		return c.Firestore.Close()
	}
	return nil
}

// InitFirebase initializes the Firebase Admin SDK with credentials from cfg and returns
// the Firestore and Auth clients.
func InitFirebase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*FirebaseClients, error) {
	if cfg == nil {
		return nil, errors.New("InitFirebase: config cannot be nil")
	}

	var opts []option.ClientOption
	switch {
	case cfg.GoogleApplicationCredentials != "":
		logger.Info("Initializing Firebase with credentials file", zap.String("path", cfg.GoogleApplicationCredentials))
		if _, err := os.Stat(cfg.GoogleApplicationCredentials); os.IsNotExist(err) {
			// The SDK may still find Application Default Credentials.
			logger.Warn("Credentials file does not exist", zap.String("path", cfg.GoogleApplicationCredentials))
		}
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleApplicationCredentials))
	case cfg.FirebaseServiceAccountJSONBase64 != "":
		logger.Info("Initializing Firebase with Base64 encoded service account JSON")
		decoded, err := base64.StdEncoding.DecodeString(cfg.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FIREBASE_SERVICE_ACCOUNT_JSON_BASE64: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
	default:
		logger.Info("Initializing Firebase using Application Default Credentials")
	}

	var fbConfig *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}
	logger.Info("Firestore client initialized")

	authClient, err := app.Auth(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("app.Auth: %w", err)
	}
	logger.Info("Firebase Auth client initialized")

	return &FirebaseClients{App: app, Firestore: fs, Auth: authClient}, nil
}

// FirestoreStore implements Store on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Close() error { return s.client.Close() }

func (s *FirestoreStore) doc(path string) (*firestore.DocumentRef, error) {
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("invalid document path %q", path)
	}
	return ref, nil
}

func (s *FirestoreStore) query(q Query) (firestore.Query, error) {
	var fq firestore.Query
	switch {
	case q.Group != "":
		fq = s.client.CollectionGroup(q.Group).Query
	case q.Collection != "":
		col := s.client.Collection(q.Collection)
		if col == nil {
			return fq, fmt.Errorf("invalid collection path %q", q.Collection)
		}
		fq = col.Query
	default:
		return fq, errors.New("query needs a collection or a collection group")
	}
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, f.Op, f.Value)
	}
	return fq, nil
}

func (s *FirestoreStore) Get(ctx context.Context, path string, dst any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return classify(path, err)
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (s *FirestoreStore) Query(ctx context.Context, q Query) ([]Document, error) {
	fq, err := s.query(q)
	if err != nil {
		return nil, err
	}
	snaps, err := fq.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	return toDocuments(snaps), nil
}

func (s *FirestoreStore) Set(ctx context.Context, path string, data any) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, path string) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// Apply streams the mutations through a BulkWriter, which batches and retries writes
// without the 500 operation limit of a WriteBatch. A BulkWriter accepts one write per
// document, so mutations are first folded per path.
func (s *FirestoreStore) Apply(ctx context.Context, muts []Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	writes, err := groupMutations(muts)
	if err != nil {
		return err
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(writes))
	paths := make([]string, 0, len(writes))
	var errs []error

	for _, w := range writes {
		ref, err := s.doc(w.path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var job *firestore.BulkWriterJob
		switch {
		case w.delete:
			job, err = bw.Delete(ref)
		case w.create:
			job, err = bw.Set(ref, w.data(), firestore.MergeAll)
		default:
			job, err = bw.Update(ref, w.updates())
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.path, err))
			continue
		}
		jobs = append(jobs, job)
		paths = append(paths, w.path)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil && status.Code(err) != codes.NotFound {
			errs = append(errs, fmt.Errorf("%s: %w", paths[i], err))
		}
	}
	return errors.Join(errs...)
}

// docWrite is every mutation for one document folded into a single write.
type docWrite struct {
	path string
	// delete drops the document and supersedes every field mutation on it.
	delete bool
	// create is set when a SetField is present, so the write must create a missing document.
	create  bool
	fields  []string
	set     map[string]any
	removed map[string][]any
	cleared map[string]bool
}

func (w *docWrite) touch(field string) {
	if _, ok := w.set[field]; ok {
		return
	}
	if _, ok := w.removed[field]; ok {
		return
	}
	if w.cleared[field] {
		return
	}
	w.fields = append(w.fields, field)
}

// value is the Firestore value for field; later mutations on a field replace earlier ones.
func (w *docWrite) value(field string) any {
	if w.cleared[field] {
		return firestore.Delete
	}
	if vals, ok := w.removed[field]; ok {
		return firestore.ArrayRemove(vals...)
	}
	return w.set[field]
}

func (w *docWrite) updates() []firestore.Update {
	ups := make([]firestore.Update, 0, len(w.fields))
	for _, f := range w.fields {
		ups = append(ups, firestore.Update{Path: f, Value: w.value(f)})
	}
	return ups
}

// data is the merge payload for a Set with MergeAll.
func (w *docWrite) data() map[string]any {
	out := map[string]any{}
	for _, f := range w.fields {
		mergeNested(out, f, w.value(f))
	}
	return out
}

// groupMutations folds muts into one write per document path, in first-seen order.
func groupMutations(muts []Mutation) ([]*docWrite, error) {
	byPath := make(map[string]*docWrite, len(muts))
	var order []*docWrite
	for _, m := range muts {
		w, ok := byPath[m.Path]
		if !ok {
			w = &docWrite{
				path:    m.Path,
				set:     map[string]any{},
				removed: map[string][]any{},
				cleared: map[string]bool{},
			}
			byPath[m.Path] = w
			order = append(order, w)
		}
		switch m.Kind {
		case MutationDelete:
			w.delete = true
		case MutationSetField:
			w.touch(m.Field)
			delete(w.removed, m.Field)
			delete(w.cleared, m.Field)
			w.set[m.Field] = m.Value
			w.create = true
		case MutationDeleteField:
			w.touch(m.Field)
			delete(w.set, m.Field)
			delete(w.removed, m.Field)
			w.cleared[m.Field] = true
		case MutationArrayRemove:
			w.touch(m.Field)
			delete(w.set, m.Field)
			delete(w.cleared, m.Field)
			w.removed[m.Field] = append(w.removed[m.Field], m.Value)
		default:
			return nil, fmt.Errorf("%s: unknown mutation kind %d", m.Path, m.Kind)
		}
	}
	return order, nil
}

func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{store: s, tx: t})
	})
}

func (s *FirestoreStore) WatchDocument(ctx context.Context, path string, fn func(doc *Document)) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	it := ref.Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
		if !snap.Exists() {
			fn(nil)
			continue
		}
		d := toDocument(snap)
		fn(&d)
	}
}

func (s *FirestoreStore) WatchQuery(ctx context.Context, q Query, fn func(docs []Document)) error {
	fq, err := s.query(q)
	if err != nil {
		return err
	}
	it := fq.Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			return fmt.Errorf("watch query: %w", err)
		}
		snaps, err := qs.Documents.GetAll()
		if err != nil {
			return fmt.Errorf("watch query: %w", err)
		}
		fn(toDocuments(snaps))
	}
}

type firestoreTx struct {
	store *FirestoreStore
	tx    *firestore.Transaction
}

func (t *firestoreTx) Get(_ context.Context, path string, dst any) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	snap, err := t.tx.Get(ref)
	if err != nil {
		return classify(path, err)
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (t *firestoreTx) Query(_ context.Context, q Query) ([]Document, error) {
	fq, err := t.store.query(q)
	if err != nil {
		return nil, err
	}
	snaps, err := t.tx.Documents(fq).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	return toDocuments(snaps), nil
}

func (t *firestoreTx) Set(path string, data any) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Set(ref, data)
}

func (t *firestoreTx) Delete(path string) error {
	ref, err := t.store.doc(path)
	if err != nil {
		return err
	}
	return t.tx.Delete(ref)
}

// classify maps a NotFound status to ErrNotFound.
func classify(path string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return fmt.Errorf("failed to read %s: %w", path, err)
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []Document {
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, toDocument(snap))
	}
	return docs
}

func toDocument(snap *firestore.DocumentSnapshot) Document {
	return Document{
		ID:     snap.Ref.ID,
		Path:   relativePath(snap.Ref.Path),
		decode: snap.DataTo,
	}
}

// relativePath strips the "projects/{p}/databases/{d}/documents/" prefix.
func relativePath(full string) string {
	const marker = "/documents/"
	if i := strings.Index(full, marker); i >= 0 {
		return full[i+len(marker):]
	}
	return full
}

// mergeNested sets the dotted field inside dst, creating intermediate maps.
func mergeNested(dst map[string]any, field string, value any) {
	parts := strings.Split(field, ".")
	cur := dst
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}
