package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/willjrcristo/revendas-billing/internal/domain"
)

// querier é satisfeito tanto por *sql.DB quanto por *sql.Tx, assim as mesmas
// consultas servem dentro e fora de uma transação.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries agrupa todas as operações de persistência do motor de cobrança.
type Queries struct {
	q querier
}

// Store é a implementação SQLite. Leituras avulsas usam os métodos de Queries
// embutidos; escritas de várias linhas passam por WithTx.
type Store struct {
	Queries
	db *sql.DB
}

// NewSQLiteRepository cria o repositório sobre uma conexão já migrada.
func NewSQLiteRepository(db *sql.DB) *Store {
	return &Store{
		Queries: Queries{q: db},
		db:      db,
	}
}

// WithTx executa fn numa transação. Qualquer erro devolvido por fn desfaz todas
// as escritas; nada fica aplicado pela metade.
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	if err := fn(&Queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, storageErr("rollback", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// Savepoint executa fn dentro de um SAVEPOINT da transação corrente. Se fn falha,
// só as escritas dela são desfeitas e a transação externa continua utilizável.
// name precisa ser um identificador SQL fixo, nunca entrada do usuário.
func (r *Queries) Savepoint(ctx context.Context, name string, fn func() error) error {
	if _, err := r.q.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return storageErr("savepoint", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := r.q.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return errors.Join(err, storageErr("rollback to savepoint", rbErr))
		}
		if _, relErr := r.q.ExecContext(ctx, "RELEASE "+name); relErr != nil {
			return errors.Join(err, storageErr("release savepoint", relErr))
		}
		return err
	}
	if _, err := r.q.ExecContext(ctx, "RELEASE "+name); err != nil {
		return storageErr("release savepoint", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// --- CLIENTES ---

const clientColumns = "id, name, phone, plan, status, trial_ends_at, subscription_ends_at, created_at"

func scanClient(row interface{ Scan(...any) error }) (*domain.Client, error) {
	var (
		c         domain.Client
		trialEnds sql.NullTime
		subEnds   sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Plan, &c.Status, &trialEnds, &subEnds, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.TrialEndsAt = timePtr(trialEnds)
	c.SubscriptionEndsAt = timePtr(subEnds)
	return &c, nil
}

// CreateClient grava um novo cliente. Telefone repetido vira ErrDuplicateClient.
func (r *Queries) CreateClient(ctx context.Context, c domain.Client) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO clients (name, phone, plan, status, trial_ends_at, subscription_ends_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		c.Name, c.Phone, c.Plan, c.Status, nullTime(c.TrialEndsAt), nullTime(c.SubscriptionEndsAt), c.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrDuplicateClient
		}
		return 0, storageErr("insert client", err)
	}
	return res.LastInsertId()
}

// GetClient devolve nil, nil quando o cliente não existe.
func (r *Queries) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clients WHERE id = ?", id)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("select client", err)
	}
	return c, nil
}

// GetClientByPhone devolve nil, nil quando o telefone não está cadastrado.
func (r *Queries) GetClientByPhone(ctx context.Context, phone string) (*domain.Client, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clients WHERE phone = ?", phone)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("select client", err)
	}
	return c, nil
}

// SyncClient atualiza o cache de status/plano/vigência do cliente.
func (r *Queries) SyncClient(ctx context.Context, id int64, status domain.ClientStatus, plan domain.Plan, subscriptionEndsAt *time.Time) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE clients SET status = ?, plan = ?, subscription_ends_at = ? WHERE id = ?",
		status, plan, nullTime(subscriptionEndsAt), id)
	if err != nil {
		return storageErr("update client", err)
	}
	return nil
}

// SetClientStatus altera só o status do cliente.
func (r *Queries) SetClientStatus(ctx context.Context, id int64, status domain.ClientStatus) error {
	_, err := r.q.ExecContext(ctx, "UPDATE clients SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return storageErr("update client status", err)
	}
	return nil
}

// --- INSTÂNCIAS ---

func (r *Queries) CreateInstance(ctx context.Context, clientID int64, subdomain string) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO instances (client_id, subdomain, status) VALUES (?, ?, ?)",
		clientID, subdomain, domain.InstanceActive)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: subdomínio %q em uso", domain.ErrConflict, subdomain)
		}
		return 0, storageErr("insert instance", err)
	}
	return res.LastInsertId()
}

// SetInstancesStatus suspende ou reativa todas as landings do cliente.
func (r *Queries) SetInstancesStatus(ctx context.Context, clientID int64, status domain.InstanceStatus) (int64, error) {
	res, err := r.q.ExecContext(ctx, "UPDATE instances SET status = ? WHERE client_id = ? AND status <> ?", status, clientID, status)
	if err != nil {
		return 0, storageErr("update instances", err)
	}
	return res.RowsAffected()
}

func (r *Queries) ListInstances(ctx context.Context, clientID int64) ([]domain.Instance, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id, client_id, subdomain, status FROM instances WHERE client_id = ? ORDER BY id", clientID)
	if err != nil {
		return nil, storageErr("select instances", err)
	}
	defer rows.Close()

	var instances []domain.Instance
	for rows.Next() {
		var i domain.Instance
		if err := rows.Scan(&i.ID, &i.ClientID, &i.Subdomain, &i.Status); err != nil {
			return nil, storageErr("scan instance", err)
		}
		instances = append(instances, i)
	}
	return instances, rows.Err()
}
