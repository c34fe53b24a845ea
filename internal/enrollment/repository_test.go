package enrollment

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/workshop-access/internal/models"
	"github.com/aura-webinar/workshop-access/pkg/database"
)

// newTestRepository connects to TEST_DATABASE_URL, or skips.
func newTestRepository(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.Migrate(ctx, pool, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepository(pool), pool
}

func insertWorkshop(t *testing.T, pool *pgxpool.Pool, status models.WorkshopStatus) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO workshops (title, starts_at, status, provider, room_id, created_by)
		 VALUES ('test', $1, $2, 'sdk', 'room-1', $3) RETURNING id`,
		time.Now().Add(time.Hour), string(status), uuid.New()).Scan(&id)
	if err != nil {
		t.Fatalf("insert workshop: %v", err)
	}
	return id
}

func TestConcurrentEnrollConvergesToOneRow(t *testing.T) {
	repo, pool := newTestRepository(t)
	ctx := context.Background()
	wid, uid := insertWorkshop(t, pool, models.WorkshopScheduled), uuid.New()

	const n = 32
	var wg sync.WaitGroup
	results := make([]bool, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.Enroll(ctx, wid, uid, models.SourcePurchase)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("enroll %d: %v", i, errs[i])
		}
		if results[i] {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("created = %d, want exactly 1", created)
	}
	var rows int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendees WHERE workshop_id = $1 AND user_id = $2`, wid, uid).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}
}

func TestEnrollUnenrollSequence(t *testing.T) {
	repo, pool := newTestRepository(t)
	ctx := context.Background()
	wid, uid := insertWorkshop(t, pool, models.WorkshopScheduled), uuid.New()

	if ok, err := repo.IsEnrolled(ctx, wid, uid); err != nil || ok {
		t.Fatalf("before enroll: %v, %v", ok, err)
	}
	if created, err := repo.Enroll(ctx, wid, uid, models.SourceAdmin); err != nil || !created {
		t.Fatalf("enroll: %v, %v", created, err)
	}
	if created, err := repo.Enroll(ctx, wid, uid, models.SourceSelf); err != nil || created {
		t.Fatalf("duplicate enroll: %v, %v", created, err)
	}
	list, err := repo.ListAttendees(ctx, wid)
	if err != nil || len(list) != 1 || list[0].Source != models.SourceAdmin {
		t.Fatalf("list = %+v, %v", list, err)
	}
	if removed, err := repo.Unenroll(ctx, wid, uid); err != nil || !removed {
		t.Fatalf("unenroll: %v, %v", removed, err)
	}
	if removed, err := repo.Unenroll(ctx, wid, uid); err != nil || removed {
		t.Fatalf("second unenroll: %v, %v", removed, err)
	}
	if ok, err := repo.IsEnrolled(ctx, wid, uid); err != nil || ok {
		t.Fatalf("after unenroll: %v, %v", ok, err)
	}
}

func TestEnrollMissingOrCancelledWorkshop(t *testing.T) {
	repo, pool := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.Enroll(ctx, uuid.New(), uuid.New(), models.SourceSelf); !errors.Is(err, ErrWorkshopNotFound) {
		t.Fatalf("err = %v, want ErrWorkshopNotFound", err)
	}
	wid := insertWorkshop(t, pool, models.WorkshopCancelled)
	if _, err := repo.Enroll(ctx, wid, uuid.New(), models.SourceSelf); !errors.Is(err, ErrWorkshopClosed) {
		t.Fatalf("err = %v, want ErrWorkshopClosed", err)
	}
}
