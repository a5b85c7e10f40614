package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"github.com/wirebird/wirebird/src/connector"
	"github.com/wirebird/wirebird/src/engine"
)

const connectorColumns = `id, tenant_id, assistant_id, name, description, type, base_url, auth_type, auth_config, tools, trigger_type, trigger_config, max_calls_per_conversation, timeout_ms, cache_ttl_seconds, retry_config, enabled, last_tested_at, last_test_result, created_at, updated_at`

// GetConnector retrieves a connector scoped to its assistant.
func GetConnector(ctx context.Context, db sqlscan.Querier, assistantID, connectorID string) (*connector.DataConnector, error) {
	query := `SELECT ` + connectorColumns + ` FROM connectors WHERE id = ? AND assistant_id = ?`
	var row connectorRow
	err := sqlscan.Get(ctx, db, &row, query, connectorID, assistantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return row.toDomain()
}

// GetEnabledConnectorsByAssistant returns the assistant's enabled
// connectors in creation order.
func GetEnabledConnectorsByAssistant(ctx context.Context, db sqlscan.Querier, assistantID string) ([]connector.DataConnector, error) {
	query := `SELECT ` + connectorColumns + ` FROM connectors WHERE assistant_id = ? AND enabled = 1 ORDER BY created_at, id`
	var rows []connectorRow
	if err := sqlscan.Select(ctx, db, &rows, query, assistantID); err != nil {
		return nil, err
	}
	out := make([]connector.DataConnector, 0, len(rows))
	for i := range rows {
		conn, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *conn)
	}
	return out, nil
}

// CreateConnector inserts a new connector declaration.
func CreateConnector(ctx context.Context, db Execer, conn *connector.DataConnector) error {
	if conn.ConnectorID == "" {
		conn.ConnectorID = uuid.New().String()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now().UTC()
	}
	if conn.UpdatedAt.IsZero() {
		conn.UpdatedAt = conn.CreatedAt
	}

	authConfig, err := marshalColumn(conn.AuthConfig)
	if err != nil {
		return err
	}
	tools, err := marshalColumn(conn.Tools)
	if err != nil {
		return err
	}
	var triggerConfig, retryConfig *string
	if conn.TriggerConfig != nil {
		if triggerConfig, err = marshalColumn(conn.TriggerConfig); err != nil {
			return err
		}
	}
	if conn.RetryConfig != nil {
		if retryConfig, err = marshalColumn(conn.RetryConfig); err != nil {
			return err
		}
	}

	query := `INSERT INTO connectors (` + connectorColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query,
		conn.ConnectorID, conn.TenantID, conn.AssistantID, conn.Name, conn.Description,
		string(conn.Type), conn.BaseURL, string(conn.AuthType), authConfig, tools,
		string(conn.Trigger), triggerConfig, conn.MaxCallsPerConversation, conn.TimeoutMs,
		conn.CacheTTLSeconds, retryConfig, conn.Enabled, conn.LastTestedAt,
		string(conn.LastTestResult), conn.CreatedAt, conn.UpdatedAt)
	return err
}

// UpdateConnectorTestResult records the outcome of a connectivity test.
func UpdateConnectorTestResult(ctx context.Context, db Execer, assistantID, connectorID string, result connector.TestResult) error {
	now := time.Now().UTC()
	query := `UPDATE connectors SET last_tested_at = ?, last_test_result = ?, updated_at = ? WHERE id = ? AND assistant_id = ?`
	_, err := db.ExecContext(ctx, query, now, string(result), now, connectorID, assistantID)
	return err
}

// GetTenantSecrets returns a tenant's secret map.
func GetTenantSecrets(ctx context.Context, db sqlscan.Querier, tenantID string) (map[string]string, error) {
	type secretRow struct {
		Name  string `db:"name"`
		Value string `db:"value"`
	}
	var rows []secretRow
	query := `SELECT name, value FROM tenant_secrets WHERE tenant_id = ?`
	if err := sqlscan.Select(ctx, db, &rows, query, tenantID); err != nil {
		return nil, err
	}
	secrets := make(map[string]string, len(rows))
	for _, row := range rows {
		secrets[row.Name] = row.Value
	}
	return secrets, nil
}

// SetTenantSecret upserts one tenant secret.
func SetTenantSecret(ctx context.Context, db Execer, tenantID, name, value string) error {
	query := `INSERT INTO tenant_secrets (tenant_id, name, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query, tenantID, name, value, time.Now().UTC())
	return err
}

// ConnectorStore adapts connector queries to the engine's store contract.
type ConnectorStore struct {
	db *DB
}

var _ engine.ConnectorStore = (*ConnectorStore)(nil)

func NewConnectorStore(db *DB) *ConnectorStore {
	return &ConnectorStore{db: db}
}

func (s *ConnectorStore) GetEnabledByAssistant(ctx context.Context, assistantID string) ([]connector.DataConnector, error) {
	return GetEnabledConnectorsByAssistant(ctx, s.db.DB(), assistantID)
}

func (s *ConnectorStore) Get(ctx context.Context, assistantID, connectorID string) (*connector.DataConnector, error) {
	conn, err := GetConnector(ctx, s.db.DB(), assistantID, connectorID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, engine.ErrConnectorNotFound
	}
	return conn, nil
}

func (s *ConnectorStore) GetSecrets(ctx context.Context, tenantID string) (map[string]string, error) {
	return GetTenantSecrets(ctx, s.db.DB(), tenantID)
}

func (s *ConnectorStore) UpdateTestResult(ctx context.Context, assistantID, connectorID string, result connector.TestResult) error {
	return UpdateConnectorTestResult(ctx, s.db.DB(), assistantID, connectorID, result)
}

func (s *ConnectorStore) Create(ctx context.Context, conn *connector.DataConnector) error {
	return CreateConnector(ctx, s.db.DB(), conn)
}
