// Package readcount provides a River-based repair path for the
// denormalized blogs.read_count column. The request-path write in the blog
// store is already atomic; this job recomputes a blog's count from the
// blog_reads table when drift is suspected (manual backfill, restored
// dumps, rows deleted out of band).
package readcount

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"
)

// maxWorkers bounds concurrent reconcile jobs. Each job is one UPDATE, so
// a small number is plenty.
const maxWorkers = 2

// ReconcileArgs identifies the blog whose count should be recomputed
type ReconcileArgs struct {
	BlogID string `json:"blog_id"`
}

// Kind returns the job kind for River
func (ReconcileArgs) Kind() string { return "read_count_reconcile" }

// ReconcileWorker recomputes one blog's read_count from blog_reads
type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileArgs]
	pool *pgxpool.Pool
}

// Work recalculates the count. The subquery runs inside the UPDATE, so the
// result is consistent even while readers insert concurrently.
func (w *ReconcileWorker) Work(ctx context.Context, job *river.Job[ReconcileArgs]) error {
	tag, err := w.pool.Exec(ctx, `
		UPDATE blogs
		SET read_count = (SELECT COUNT(*) FROM blog_reads WHERE blog_id = $1)
		WHERE id = $1
	`, job.Args.BlogID)
	if err != nil {
		return fmt.Errorf("failed to reconcile read count: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Blog was deleted after the job was queued; nothing to repair.
		log.Debug().Str("blog_id", job.Args.BlogID).Msg("Reconcile skipped, blog gone")
		return nil
	}

	log.Info().Str("blog_id", job.Args.BlogID).Msg("Read count reconciled")
	return nil
}

// Reconciler manages the River queue for read-count repairs
type Reconciler struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

// NewReconciler creates the queue client and its worker pool
func NewReconciler(databaseURL string) (*Reconciler, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &ReconcileWorker{pool: pool})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &Reconciler{client: client, pool: pool}, nil
}

// Start starts the queue workers
func (r *Reconciler) Start(ctx context.Context) error {
	return r.client.Start(ctx)
}

// Stop stops the workers and releases the pool
func (r *Reconciler) Stop(ctx context.Context) error {
	err := r.client.Stop(ctx)
	r.pool.Close()
	return err
}

// Enqueue queues a reconcile job for one blog
func (r *Reconciler) Enqueue(ctx context.Context, blogID string) error {
	_, err := r.client.Insert(ctx, ReconcileArgs{BlogID: blogID}, nil)
	if err != nil {
		return fmt.Errorf("failed to queue reconcile job: %w", err)
	}
	return nil
}
