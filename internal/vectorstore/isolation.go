package vectorstore

import "context"

// IsolationMode defines how tenant isolation is enforced in vector stores.
//
// Security: all implementations must enforce fail-closed behavior - a
// request without tenant context errors instead of seeing cross-tenant data.
type IsolationMode interface {
	// InjectFilter adds tenant filtering to query filters.
	// Must fail with ErrMissingTenant if tenant context is absent.
	InjectFilter(ctx context.Context, filters map[string]string) (map[string]string, error)

	// InjectMetadata adds tenant metadata to documents before storage.
	// Must fail with ErrMissingTenant if tenant context is absent.
	InjectMetadata(ctx context.Context, docs []Document) error

	// Mode returns the isolation mode name for logging.
	Mode() string
}

// PayloadIsolation implements IsolationMode using metadata filtering.
//
// All tenants share a single collection; tenant_id is stored as point
// payload and every query is filtered by the tenant in the context. The
// filter injection is mandatory and overwrites any caller-supplied
// tenant_id, so a document can never be written or read under another
// tenant's scope.
type PayloadIsolation struct{}

// NewPayloadIsolation creates a new PayloadIsolation mode.
func NewPayloadIsolation() *PayloadIsolation {
	return &PayloadIsolation{}
}

// InjectFilter merges the tenant filter into existing query filters.
func (p *PayloadIsolation) InjectFilter(ctx context.Context, filters map[string]string) (map[string]string, error) {
	tenant, err := TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(filters)+1)
	for k, v := range filters {
		merged[k] = v
	}
	for k, v := range tenant.TenantFilter() {
		merged[k] = v
	}
	return merged, nil
}

// InjectMetadata adds tenant metadata to all documents.
func (p *PayloadIsolation) InjectMetadata(ctx context.Context, docs []Document) error {
	tenant, err := TenantFromContext(ctx)
	if err != nil {
		return err
	}
	if err := tenant.Validate(); err != nil {
		return err
	}

	tenantMeta := tenant.TenantMetadata()
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]string)
		}
		// Overwrites if present for security.
		for k, v := range tenantMeta {
			docs[i].Metadata[k] = v
		}
	}
	return nil
}

// Mode returns "payload" for this isolation mode.
func (p *PayloadIsolation) Mode() string {
	return "payload"
}

// NoIsolation provides no tenant isolation - for testing only.
type NoIsolation struct{}

// NewNoIsolation creates a new NoIsolation mode (testing only).
func NewNoIsolation() *NoIsolation {
	return &NoIsolation{}
}

// InjectFilter passes through filters unchanged.
func (n *NoIsolation) InjectFilter(ctx context.Context, filters map[string]string) (map[string]string, error) {
	return filters, nil
}

// InjectMetadata is a no-op.
func (n *NoIsolation) InjectMetadata(ctx context.Context, docs []Document) error {
	return nil
}

// Mode returns "none" for this isolation mode.
func (n *NoIsolation) Mode() string {
	return "none"
}

// Ensure implementations satisfy IsolationMode interface.
var (
	_ IsolationMode = (*PayloadIsolation)(nil)
	_ IsolationMode = (*NoIsolation)(nil)
)
