package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/giantswarm/simguard/internal/core"
	"github.com/giantswarm/simguard/internal/fileutil"
	"github.com/giantswarm/simguard/internal/sentinel"
	"github.com/gofrs/flock"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"
)

// ErrEndpointLocked is returned by Open when another supervisor holds the
// endpoint's journal.
const ErrEndpointLocked = sentinel.Error("simulation endpoint owned by another supervisor")

// Actor states stored in the actors table.
const (
	statePending   = "pending"
	stateDestroyed = "destroyed"
	stateGone      = "gone"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	started_at   INTEGER NOT NULL,
	reclaimed_at INTEGER,
	pass         TEXT
);
CREATE TABLE IF NOT EXISTS actors (
	session_id TEXT    NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	actor_id   INTEGER NOT NULL,
	state      TEXT    NOT NULL,
	PRIMARY KEY (session_id, actor_id)
);
CREATE INDEX IF NOT EXISTS actors_state ON actors(state);
`

// Journal records spawned and reclaimed actors for one endpoint. It
// implements core.Recorder. Methods are safe for concurrent use.
type Journal struct {
	path string
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
	log  *slog.Logger
}

var _ core.Recorder = (*Journal)(nil)

// FileName maps an endpoint address such as "localhost:2000" to the base
// name of its journal files.
func FileName(endpoint string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_", "[", "", "]", "")
	name := r.Replace(strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://"))
	if name == "" {
		name = "default"
	}
	return name
}

// Open locks and opens the journal for endpoint under dir, creating both if
// needed. ctx bounds the wait for the lock.
func Open(ctx context.Context, dir, endpoint string) (_ *Journal, retErr error) {
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("prepare journal dir: %w", err)
	}
	log := core.Logger().With("journal", endpoint)
	base := filepath.Join(dir, FileName(endpoint))

	fl, err := acquireLock(ctx, base+".lock")
	if err != nil {
		return nil, err
	}
	defer func() {
		if retErr != nil {
			_ = releaseLock(log, fl)
		}
	}()

	path := base + ".db"
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer; the file lock already excludes other processes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal %s: %w", path, err)
	}

	log.Debug("journal opened", "path", path)
	return &Journal{path: path, db: db, lock: fl, now: time.Now, log: log}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Close closes the database and releases the endpoint lock.
func (j *Journal) Close() error {
	return errors.Join(j.db.Close(), releaseLock(j.log, j.lock))
}

// RecordSpawned stores a new session and its actors as pending.
func (j *Journal) RecordSpawned(ctx context.Context, sessionID string, actors []core.ActorID) error {
	return j.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
			sessionID, j.now().Unix(),
		); err != nil {
			return fmt.Errorf("insert session %s: %w", sessionID, err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO actors (session_id, actor_id, state) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare actor insert: %w", err)
		}
		defer stmt.Close()

		for _, id := range actors {
			if _, err := stmt.ExecContext(ctx, sessionID, int64(id), statePending); err != nil {
				return fmt.Errorf("insert actor %s: %w", id, err)
			}
		}
		return nil
	})
}

// RecordReclaimed marks the outcome of a reclamation pass. Actors whose
// destroy failed stay pending for the next Sweep.
func (j *Journal) RecordReclaimed(ctx context.Context, sessionID string, rep core.Report) error {
	failed := make(map[core.ActorID]struct{}, len(rep.Failed))
	for _, id := range rep.Failed {
		failed[id] = struct{}{}
	}

	return j.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range rep.Attempted {
			if _, ok := failed[id]; ok {
				continue
			}
			if err := setState(ctx, tx, sessionID, id, stateDestroyed); err != nil {
				return err
			}
		}
		for _, id := range rep.Gone {
			if err := setState(ctx, tx, sessionID, id, stateGone); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET reclaimed_at = ?, pass = ? WHERE id = ?`,
			j.now().Unix(), rep.Pass.String(), sessionID,
		); err != nil {
			return fmt.Errorf("update session %s: %w", sessionID, err)
		}
		return nil
	})
}

// Orphan is a journaled actor whose destruction was never confirmed.
type Orphan struct {
	SessionID string
	ID        core.ActorID
}

// Pending lists every actor still marked pending, oldest session first.
func (j *Journal) Pending(ctx context.Context) ([]Orphan, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT a.session_id, a.actor_id
		FROM actors a JOIN sessions s ON s.id = a.session_id
		WHERE a.state = ?
		ORDER BY s.started_at, a.rowid`, statePending)
	if err != nil {
		return nil, fmt.Errorf("query pending actors: %w", err)
	}
	defer rows.Close()

	var out []Orphan
	for rows.Next() {
		var (
			o  Orphan
			id int64
		)
		if err := rows.Scan(&o.SessionID, &id); err != nil {
			return nil, fmt.Errorf("scan pending actor: %w", err)
		}
		o.ID = core.ActorID(id)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending actors: %w", err)
	}
	return out, nil
}

// SweepReport summarizes a Sweep.
type SweepReport struct {
	Destroyed int
	Gone      int
	Failed    int
}

// Sweep destroys actors left pending by earlier sessions and forgets
// sessions with nothing left to clean up. A failed destroy stays pending.
// callTimeout bounds each endpoint call.
func (j *Journal) Sweep(ctx context.Context, ep core.Endpoint, callTimeout time.Duration) (SweepReport, error) {
	orphans, err := j.Pending(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	if len(orphans) > 0 {
		j.log.Warn("destroying actors left behind by earlier sessions", "actors", len(orphans))
	}

	var rep SweepReport
	for _, o := range orphans {
		state, err := j.sweepOne(ctx, ep, o.ID, callTimeout)
		if err != nil {
			rep.Failed++
			j.log.Warn("failed to destroy orphaned actor", "actor", o.ID, "session", o.SessionID, "error", err)
			continue
		}
		if state == stateGone {
			rep.Gone++
		} else {
			rep.Destroyed++
		}
		if err := j.inTx(ctx, func(tx *sql.Tx) error {
			return setState(ctx, tx, o.SessionID, o.ID, state)
		}); err != nil {
			return rep, err
		}
	}

	if err := j.purge(ctx); err != nil {
		return rep, err
	}
	return rep, nil
}

func (j *Journal) sweepOne(ctx context.Context, ep core.Endpoint, id core.ActorID, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	alive, err := ep.IsAlive(callCtx, id)
	if err != nil {
		return "", fmt.Errorf("check actor %s: %w", id, err)
	}
	if !alive {
		return stateGone, nil
	}
	if err := ep.Destroy(callCtx, id); err != nil {
		return "", fmt.Errorf("destroy actor %s: %w", id, err)
	}
	return stateDestroyed, nil
}

// purge deletes sessions that have no pending actors left. Their actor rows
// go with them. Sweep runs before the new session records anything, and the
// endpoint lock keeps other supervisors out, so no live session is touched.
func (j *Journal) purge(ctx context.Context) error {
	res, err := j.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE NOT EXISTS (
			SELECT 1 FROM actors a WHERE a.session_id = sessions.id AND a.state = ?
		  )`, statePending)
	if err != nil {
		return fmt.Errorf("purge finished sessions: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		j.log.Debug("purged finished sessions", "sessions", n)
	}
	return nil
}

func setState(ctx context.Context, tx *sql.Tx, sessionID string, id core.ActorID, state string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE actors SET state = ? WHERE session_id = ? AND actor_id = ?`,
		state, sessionID, int64(id),
	); err != nil {
		return fmt.Errorf("mark actor %s %s: %w", id, state, err)
	}
	return nil
}

func (j *Journal) inTx(ctx context.Context, fn func(*sql.Tx) error) (retErr error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				j.log.Warn("journal rollback failed", "error", rbErr)
			}
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal transaction: %w", err)
	}
	return nil
}
