package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/okian/occupancy/internal/domain/assignment"
	"github.com/okian/occupancy/internal/domain/interval"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/pkg/logger"
	"github.com/okian/occupancy/pkg/metrics"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// Assignments carry no stored span; it is derived from allocations on read.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT,
		cost_rate INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		industry TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		status TEXT NOT NULL,
		contract_amount INTEGER NOT NULL DEFAULT 0,
		start_date TEXT,
		end_date TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL REFERENCES employees(id),
		project_id INTEGER NOT NULL REFERENCES projects(id)
	)`,
	`CREATE TABLE IF NOT EXISTS allocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assignment_id INTEGER NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		effort_percent REAL NOT NULL CHECK (effort_percent >= 0),
		CHECK (start_date <= end_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_allocations_range ON allocations(end_date, start_date)`,
}

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" only with a single connection.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := applyOptions(opts)

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	s := &SQLiteStore{db: db, logger: o.logger.Named("sqlite")}
	s.logger.Info(ctx, "sqlite store ready", logger.String("path", path))
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateEmployee inserts e.
func (s *SQLiteStore) CreateEmployee(ctx context.Context, e model.Employee) (model.Employee, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO employees (name, email, role, cost_rate) VALUES (?, ?, ?, ?)",
		e.Name, e.Email, e.Role, e.CostRate)
	if err != nil {
		return model.Employee{}, unavailable("insert employee", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return model.Employee{}, unavailable("insert employee", err)
	}
	return e, nil
}

// CreateCustomer inserts c.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO customers (name, industry) VALUES (?, ?)", c.Name, c.Industry)
	if err != nil {
		return model.Customer{}, unavailable("insert customer", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return model.Customer{}, unavailable("insert customer", err)
	}
	return c, nil
}

// CreateProject inserts p after checking its customer exists.
func (s *SQLiteStore) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	ok, err := s.exists(ctx, s.db, "customers", p.CustomerID)
	if err != nil {
		return model.Project{}, err
	}
	if !ok {
		return model.Project{}, fmt.Errorf("customer %d: %w", p.CustomerID, ErrCustomerNotFound)
	}
	if p.Status == "" {
		p.Status = model.StatusLead
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (name, customer_id, status, contract_amount, start_date, end_date) VALUES (?, ?, ?, ?, ?, ?)",
		p.Name, p.CustomerID, string(p.Status), p.ContractAmount, dateArg(p.StartDate), dateArg(p.EndDate))
	if err != nil {
		return model.Project{}, unavailable("insert project", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return model.Project{}, unavailable("insert project", err)
	}
	return p, nil
}

// GetProject returns the project with id.
func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (model.Project, error) {
	var (
		p          model.Project
		status     string
		start, end sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, customer_id, status, contract_amount, start_date, end_date FROM projects WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.CustomerID, &status, &p.ContractAmount, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, fmt.Errorf("project %d: %w", id, ErrProjectNotFound)
	}
	if err != nil {
		return model.Project{}, unavailable("get project", err)
	}
	p.Status = model.ProjectStatus(status)
	if p.StartDate, err = nullDate(start); err != nil {
		return model.Project{}, fmt.Errorf("project %d start_date: %w", id, err)
	}
	if p.EndDate, err = nullDate(end); err != nil {
		return model.Project{}, fmt.Errorf("project %d end_date: %w", id, err)
	}
	return p, nil
}

// UpdateProject replaces the fields of an existing project.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p model.Project) (updated model.Project, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Project{}, unavailable("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status string
	err = tx.QueryRowContext(ctx, "SELECT status FROM projects WHERE id = ?", p.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("project %d: %w", p.ID, ErrProjectNotFound)
		return model.Project{}, err
	}
	if err != nil {
		return model.Project{}, unavailable("get project", err)
	}
	ok, err := s.exists(ctx, tx, "customers", p.CustomerID)
	if err != nil {
		return model.Project{}, err
	}
	if !ok {
		err = fmt.Errorf("customer %d: %w", p.CustomerID, ErrCustomerNotFound)
		return model.Project{}, err
	}
	if p.Status == "" {
		p.Status = model.ProjectStatus(status)
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE projects SET name = ?, customer_id = ?, status = ?, contract_amount = ?, start_date = ?, end_date = ? WHERE id = ?",
		p.Name, p.CustomerID, string(p.Status), p.ContractAmount, dateArg(p.StartDate), dateArg(p.EndDate), p.ID); err != nil {
		return model.Project{}, unavailable("update project", err)
	}
	if err = tx.Commit(); err != nil {
		return model.Project{}, unavailable("commit", err)
	}
	return p, nil
}

// ListEmployees returns employees matching filter ordered by id.
func (s *SQLiteStore) ListEmployees(ctx context.Context, filter EmployeeFilter) ([]model.Employee, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency("employees", msSince(start)) }()
	return listEmployees(ctx, s.db, filter)
}

func listEmployees(ctx context.Context, q rowsQueryer, filter EmployeeFilter) ([]model.Employee, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, COALESCE(email, ''), COALESCE(role, ''), cost_rate FROM employees ORDER BY id")
	if err != nil {
		return nil, unavailable("list employees", err)
	}
	defer rows.Close()

	var out []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &e.CostRate); err != nil {
			return nil, unavailable("scan employee", err)
		}
		if filter.Match(e) {
			out = append(out, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list employees", err)
	}
	return out, nil
}

// ListAssignments returns assignments with spans derived from allocations.
func (s *SQLiteStore) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency("assignments", msSince(start)) }()
	return listAssignments(ctx, s.db)
}

func listAssignments(ctx context.Context, q rowsQueryer) ([]model.Assignment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.id, a.employee_id, a.project_id, MIN(al.start_date), MAX(al.end_date)
		FROM assignments a
		LEFT JOIN allocations al ON al.assignment_id = a.id
		GROUP BY a.id, a.employee_id, a.project_id
		ORDER BY a.id`)
	if err != nil {
		return nil, unavailable("list assignments", err)
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var (
			a          model.Assignment
			first, end sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.ProjectID, &first, &end); err != nil {
			return nil, unavailable("scan assignment", err)
		}
		if first.Valid && end.Valid {
			if a.StartDate, err = civil.ParseDate(first.String); err != nil {
				return nil, fmt.Errorf("assignment %d span: %w", a.ID, err)
			}
			if a.EndDate, err = civil.ParseDate(end.String); err != nil {
				return nil, fmt.Errorf("assignment %d span: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list assignments", err)
	}
	return out, nil
}

// ListAllocations returns allocations overlapping rng ordered by id. Dates
// are stored as YYYY-MM-DD so lexical comparison is chronological.
func (s *SQLiteStore) ListAllocations(ctx context.Context, rng *interval.Interval) ([]model.Allocation, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency("allocations", msSince(start)) }()
	return listAllocations(ctx, s.db, rng)
}

func listAllocations(ctx context.Context, q rowsQueryer, rng *interval.Interval) ([]model.Allocation, error) {
	query := "SELECT id, assignment_id, start_date, end_date, effort_percent FROM allocations"
	var args []any
	if rng != nil {
		query += " WHERE end_date >= ? AND start_date <= ?"
		args = append(args, rng.Start.String(), rng.End.String())
	}
	query += " ORDER BY id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list allocations", err)
	}
	defer rows.Close()

	var out []model.Allocation
	for rows.Next() {
		var (
			al         model.Allocation
			first, end string
		)
		if err := rows.Scan(&al.ID, &al.AssignmentID, &first, &end, &al.EffortPercent); err != nil {
			return nil, unavailable("scan allocation", err)
		}
		if al.StartDate, err = civil.ParseDate(first); err != nil {
			return nil, fmt.Errorf("allocation %d start_date: %w", al.ID, err)
		}
		if al.EndDate, err = civil.ParseDate(end); err != nil {
			return nil, fmt.Errorf("allocation %d end_date: %w", al.ID, err)
		}
		out = append(out, al)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list allocations", err)
	}
	return out, nil
}

// Snapshot runs the employee, assignment and allocation reads in one
// transaction so they observe the same database state.
func (s *SQLiteStore) Snapshot(ctx context.Context, rng *interval.Interval) (snap Snapshot, err error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency("snapshot", msSince(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, unavailable("begin", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && err == nil {
			s.logger.Warn(ctx, "snapshot rollback failed", logger.Error(rbErr))
		}
	}()

	if snap.Employees, err = listEmployees(ctx, tx, EmployeeFilter{}); err != nil {
		return Snapshot{}, err
	}
	if snap.Assignments, err = listAssignments(ctx, tx); err != nil {
		return Snapshot{}, err
	}
	if snap.Allocations, err = listAllocations(ctx, tx, rng); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CreateAssignment inserts a and allocs in one transaction.
func (s *SQLiteStore) CreateAssignment(ctx context.Context, a model.Assignment, allocs []model.Allocation) (created model.Assignment, err error) {
	if len(allocs) == 0 {
		return model.Assignment{}, assignment.ErrEmptyAllocationSet
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Assignment{}, unavailable("begin", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error(ctx, "rollback failed", logger.Error(rbErr))
			}
		}
	}()

	ok, err := s.exists(ctx, tx, "employees", a.EmployeeID)
	if err != nil {
		return model.Assignment{}, err
	}
	if !ok {
		return model.Assignment{}, fmt.Errorf("employee %d: %w", a.EmployeeID, ErrEmployeeNotFound)
	}
	if ok, err = s.exists(ctx, tx, "projects", a.ProjectID); err != nil {
		return model.Assignment{}, err
	}
	if !ok {
		return model.Assignment{}, fmt.Errorf("project %d: %w", a.ProjectID, ErrProjectNotFound)
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO assignments (employee_id, project_id) VALUES (?, ?)", a.EmployeeID, a.ProjectID)
	if err != nil {
		return model.Assignment{}, unavailable("insert assignment", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return model.Assignment{}, unavailable("insert assignment", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO allocations (assignment_id, start_date, end_date, effort_percent) VALUES (?, ?, ?, ?)")
	if err != nil {
		return model.Assignment{}, unavailable("prepare allocation insert", err)
	}
	defer stmt.Close()

	stored := make([]model.Allocation, len(allocs))
	for i, al := range allocs {
		res, err := stmt.ExecContext(ctx, a.ID, al.StartDate.String(), al.EndDate.String(), al.EffortPercent)
		if err != nil {
			return model.Assignment{}, fmt.Errorf("insert allocation %d: %w", i, err)
		}
		if al.ID, err = res.LastInsertId(); err != nil {
			return model.Assignment{}, unavailable("insert allocation", err)
		}
		al.AssignmentID = a.ID
		stored[i] = al
	}

	if err = tx.Commit(); err != nil {
		return model.Assignment{}, unavailable("commit", err)
	}

	span, _ := assignment.Span(stored)
	a.StartDate, a.EndDate = span.StartDate, span.EndDate
	a.Allocations = stored
	s.logger.Debug(ctx, "assignment created",
		logger.Int64("assignmentID", a.ID),
		logger.Int("allocations", len(stored)),
	)
	return a, nil
}

// DeleteAssignment removes the assignment and its allocations in one
// transaction.
func (s *SQLiteStore) DeleteAssignment(ctx context.Context, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM allocations WHERE assignment_id = ?", id); err != nil {
		return unavailable("delete allocations", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM assignments WHERE id = ?", id)
	if err != nil {
		return unavailable("delete assignment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete assignment", err)
	}
	if n == 0 {
		err = fmt.Errorf("assignment %d: %w", id, ErrAssignmentNotFound)
		return err
	}
	if err = tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// Count returns current row counts; failures yield zeros.
func (s *SQLiteStore) Count(ctx context.Context) Counts {
	var c Counts
	_ = s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM employees),
		(SELECT COUNT(*) FROM assignments),
		(SELECT COUNT(*) FROM allocations)`).Scan(&c.Employees, &c.Assignments, &c.Allocations)
	return c
}

type rowsQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) exists(ctx context.Context, q queryer, table string, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("lookup "+table, err)
	}
	return true, nil
}

// dateArg stores the zero date as NULL.
func dateArg(d civil.Date) any {
	if !d.IsValid() {
		return nil
	}
	return d.String()
}

func nullDate(s sql.NullString) (civil.Date, error) {
	if !s.Valid {
		return civil.Date{}, nil
	}
	return civil.ParseDate(s.String)
}

// unavailable marks a database failure as a collaborator outage.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrCollaboratorUnavailable, err)
}
