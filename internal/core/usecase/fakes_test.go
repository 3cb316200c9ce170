package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/bidworks/ingest-pipeline/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type docRepoFake struct {
	doc        *domain.Document
	getErr     error
	createErr  error
	requeueErr error

	created   *domain.Document
	marked    []domain.DocumentStatus
	failedMsg string
	completed map[string]string
	requeued  []string
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = doc
	return nil
}

func (f *docRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *docRepoFake) ListByProject(context.Context, string, *domain.DocumentStatus) ([]domain.Document, error) {
	if f.doc == nil {
		return nil, nil
	}
	return []domain.Document{*f.doc}, nil
}

func (f *docRepoFake) MarkProcessing(context.Context, string, time.Time) error {
	f.marked = append(f.marked, domain.StatusProcessing)
	return nil
}

func (f *docRepoFake) MarkCompleted(_ context.Context, _ string, metadata map[string]string, _ time.Time) error {
	f.marked = append(f.marked, domain.StatusCompleted)
	f.completed = metadata
	return nil
}

func (f *docRepoFake) MarkFailed(_ context.Context, _ string, errMessage string, _ time.Time) error {
	f.marked = append(f.marked, domain.StatusFailed)
	f.failedMsg = errMessage
	return nil
}

func (f *docRepoFake) Requeue(_ context.Context, id string) error {
	if f.requeueErr != nil {
		return f.requeueErr
	}
	f.requeued = append(f.requeued, id)
	return nil
}

type lineItemRepoFake struct {
	maxLine       int
	existingCodes map[string]struct{}
	uncategorized []domain.LineItem
	all           []domain.LineItem
	remaining     int

	insertErr       error
	insertErrByCode map[string]error
	applyErr        map[string]error

	inserted []domain.LineItem
	deleted  int
	applied  []domain.CategorizationUpdate
}

func (f *lineItemRepoFake) Insert(_ context.Context, item *domain.LineItem) error {
	if err, ok := f.insertErrByCode[item.ItemCode]; ok {
		return err
	}
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *item)
	return nil
}

func (f *lineItemRepoFake) MaxLineNumber(context.Context, string) (int, error) {
	return f.maxLine, nil
}

func (f *lineItemRepoFake) ExistingItemCodes(context.Context, string) (map[string]struct{}, error) {
	if f.existingCodes == nil {
		return map[string]struct{}{}, nil
	}
	return f.existingCodes, nil
}

func (f *lineItemRepoFake) DeleteByDocument(context.Context, string, string) (int, error) {
	return f.deleted, nil
}

func (f *lineItemRepoFake) ListByProject(context.Context, string) ([]domain.LineItem, error) {
	return f.all, nil
}

func (f *lineItemRepoFake) ListUncategorized(_ context.Context, _ string, limit int) ([]domain.LineItem, error) {
	if len(f.uncategorized) > limit {
		return f.uncategorized[:limit], nil
	}
	return f.uncategorized, nil
}

func (f *lineItemRepoFake) CountUncategorized(context.Context, string) (int, error) {
	return f.remaining, nil
}

func (f *lineItemRepoFake) ApplyCategorization(_ context.Context, update domain.CategorizationUpdate) error {
	if err := f.applyErr[update.LineItemID]; err != nil {
		return err
	}
	f.applied = append(f.applied, update)
	return nil
}

type catalogRepoFake struct {
	byCode   map[string]*domain.CatalogItem
	byPrefix map[string]*domain.CatalogItem
	sample   []domain.CatalogItem
}

func (f *catalogRepoFake) GetByCode(_ context.Context, itemCode string) (*domain.CatalogItem, error) {
	if entry, ok := f.byCode[itemCode]; ok {
		return entry, nil
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get catalog item", errors.New("no such code"))
}

func (f *catalogRepoFake) GetByPrefix(_ context.Context, prefix string) (*domain.CatalogItem, error) {
	if entry, ok := f.byPrefix[prefix]; ok {
		return entry, nil
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get catalog item by prefix", errors.New("no such prefix"))
}

func (f *catalogRepoFake) Sample(context.Context, int) ([]domain.CatalogItem, error) {
	return f.sample, nil
}

type packageRepoFake struct {
	existing  int
	createErr error
	linkErr   map[string]error

	deletedFor []string
	packages   []domain.WorkPackage
	links      []domain.WorkPackageItem
	counts     map[string]int
}

func (f *packageRepoFake) CountByProject(context.Context, string) (int, error) {
	return f.existing, nil
}

func (f *packageRepoFake) DeleteByProject(_ context.Context, projectID string) error {
	f.deletedFor = append(f.deletedFor, projectID)
	return nil
}

func (f *packageRepoFake) CreatePackage(_ context.Context, pkg *domain.WorkPackage) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.packages = append(f.packages, *pkg)
	return nil
}

func (f *packageRepoFake) LinkItem(_ context.Context, link *domain.WorkPackageItem) error {
	if err := f.linkErr[link.LineItemID]; err != nil {
		return err
	}
	f.links = append(f.links, *link)
	return nil
}

func (f *packageRepoFake) UpdateItemCount(_ context.Context, packageID string, itemCount int) error {
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[packageID] = itemCount
	return nil
}

type projectRepoFake struct {
	project    *domain.Project
	getErr     error
	backfilled []domain.ProjectMetadata
}

func (f *projectRepoFake) GetByID(context.Context, string) (*domain.Project, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.project == nil {
		return &domain.Project{ID: "proj-1"}, nil
	}
	return f.project, nil
}

func (f *projectRepoFake) BackfillMetadata(_ context.Context, _ string, md domain.ProjectMetadata) (bool, error) {
	f.backfilled = append(f.backfilled, md)
	return true, nil
}

type storageFake struct {
	content []byte
	openErr error
	saved   map[string][]byte
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = raw
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

type queueFake struct {
	publishErr error
	published  []string
}

func (f *queueFake) PublishDocumentUploaded(_ context.Context, documentID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentUploaded(context.Context, func(context.Context, string) error) error {
	return nil
}

type parserFake struct {
	result domain.ParseResult
	err    error
	calls  int
}

func (f *parserFake) Parse([]byte) (domain.ParseResult, error) {
	f.calls++
	if f.err != nil {
		return domain.ParseResult{}, f.err
	}
	return f.result, nil
}

type metadataExtractorFake struct {
	fields domain.ExtractedDocumentFields
	calls  int
}

func (f *metadataExtractorFake) ExtractMetadata(context.Context, []byte, string, domain.DocumentType) domain.ExtractedDocumentFields {
	f.calls++
	return f.fields
}

type analyzerFake struct {
	analysis domain.DocumentAnalysis
	err      error
	calls    int
}

func (f *analyzerFake) AnalyzeDocument(context.Context, []byte, string, domain.DocumentType) (domain.DocumentAnalysis, error) {
	f.calls++
	if f.err != nil {
		return domain.DocumentAnalysis{}, f.err
	}
	return f.analysis, nil
}

type categorizerFake struct {
	proposals []domain.AICategorization
	err       error
	gotItems  []domain.LineItem
	gotSample []domain.CatalogItem
}

func (f *categorizerFake) CategorizeItems(_ context.Context, items []domain.LineItem, sample []domain.CatalogItem) ([]domain.AICategorization, error) {
	f.gotItems = items
	f.gotSample = sample
	if f.err != nil {
		return nil, f.err
	}
	return f.proposals, nil
}

type proposerFake struct {
	proposals []domain.ProposedPackage
	err       error
	calls     int
}

func (f *proposerFake) ProposePackages(_ context.Context, _ []domain.LineItem) ([]domain.ProposedPackage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.proposals, nil
}
