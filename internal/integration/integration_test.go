package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"trivia-engine/internal/app"
	"trivia-engine/internal/clock"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/infra/postgres"
	pgmigrations "trivia-engine/internal/infra/postgres/migrations"
	infraredis "trivia-engine/internal/infra/redis"
)

func TestSoloQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	loader := postgres.NewQuizLoader(pool)
	scores := postgres.NewScoreStore(pool)
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	engine := app.NewEngine(ctx, app.DefaultOptions(), app.EngineDeps{
		Quizzes:   infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute, zap.NewNop()),
		Store:     scores,
		Presenter: nopPresenter{},
		Registry:  infraredis.NewSessionStore(redisClient, 5*time.Minute, zap.NewNop()),
		Publisher: infraredis.NewLeaderboardCache(redisClient, time.Hour),
		Clock:     fake,
	})
	defer engine.Close(ctx)

	alice := domain.Participant{ID: "u1", DisplayName: "Alice"}
	ticket, err := engine.StartSolo(ctx, alice, "quiz-1", 10)
	if err != nil || !ticket.Admitted {
		t.Fatalf("start solo: ticket=%+v err=%v", ticket, err)
	}
	var sessionID string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if id, ok := engine.ActiveSession("u1"); ok {
			if snap, err := engine.Snapshot(id, "u1"); err == nil && snap.Status == domain.StatusAwaitingAnswer {
				sessionID = id
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	if sessionID == "" {
		t.Fatalf("session never started")
	}

	fake.Advance(3 * time.Second)
	res, err := engine.SubmitAnswer(ctx, app.AnswerCommand{SessionID: sessionID, ParticipantID: "u1", QuestionID: "q1", Key: "B"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Correct || res.Awarded != 7 {
		t.Fatalf("expected 7 points at 3s of 10s, got %+v", res)
	}
	fake.Advance(2 * time.Second)

	top, err := scores.TopScores(ctx, "quiz-1", 5)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(top) != 1 || top[0].ParticipantID != "u1" || top[0].Score != 7 || top[0].DisplayName != "Alice" {
		t.Fatalf("unexpected stored scores %+v", top)
	}

	// a lower later score never overwrites the best one
	if err := scores.RecordScore(ctx, domain.ScoreRecord{ParticipantID: "u1", QuizID: "quiz-1", Score: 2}); err != nil {
		t.Fatalf("record: %v", err)
	}
	top, _ = scores.TopScores(ctx, "quiz-1", 5)
	if top[0].Score != 7 || top[0].DisplayName != "Alice" {
		t.Fatalf("expected best score kept, got %+v", top[0])
	}

	_, err = engine.StartSolo(ctx, alice, "quiz-1", 10)
	if !domain.IsAdmission(err, domain.AdmissionAlreadyTaken) {
		t.Fatalf("expected already taken, got %v", err)
	}
	if _, err := loader.LoadQuiz(ctx, "missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

type nopPresenter struct{}

func (nopPresenter) ShowQuestion(context.Context, domain.Participant, domain.QuestionView) error {
	return nil
}
func (nopPresenter) ShowFeedback(context.Context, domain.Participant, domain.Feedback) error {
	return nil
}
func (nopPresenter) ShowResult(context.Context, domain.Participant, domain.SessionResult) error {
	return nil
}
func (nopPresenter) ShowSnapshot(context.Context, domain.Participant, domain.SessionSnapshot) error {
	return nil
}
func (nopPresenter) Announce(context.Context, string, domain.Announcement) error { return nil }
func (nopPresenter) Notify(context.Context, domain.Participant, string) error    { return nil }

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, name, data) VALUES (?, ?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, quiz.Name, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:   "quiz-1",
		Name: "Basics",
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Options: []domain.Option{
					{Key: "A", Label: "3"},
					{Key: "B", Label: "4"},
					{Key: "C", Label: "5"},
				},
				CorrectKey: "B",
				MaxScore:   10,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
