package redisstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/estatehub/session-service/internal/models"
	"github.com/estatehub/session-service/internal/storage"
)

// Файл интеграционных тестов для пакета redisstore:
// - поднимает реальный Redis через testcontainers-go (образ redis:7-alpine);
// - проверяет happy-path ротации и сдвиг TTL;
// - проверяет детект повторного использования (включая уничтожение семейства
//   и отказ "легитимному" токену следующего поколения);
// - гоняет конкурентную ротацию одного токена: победитель ровно один;
// - проверяет изоляцию семейств и TTL чёрного списка.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/redisstore -v -race -count=1

// startRedis — поднимает временный экземпляр Redis через testcontainers-go
// и возвращает инициализированное хранилище и функцию очистки.
// Если переменная окружения GO_TEST_INTEGRATION не установлена — тест пропускается.
func startRedis(t *testing.T) (*Store, func()) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")
	url := fmt.Sprintf("redis://%s:%s/0", host, port.Port())

	st, err := New(ctx, url)
	require.NoError(t, err)

	cleanup := func() {
		_ = st.Close()
		_ = c.Terminate(context.Background())
	}
	return st, cleanup
}

func newFamily(t *testing.T, st *Store, ttl time.Duration) *models.SessionFamily {
	t.Helper()
	fam := &models.SessionFamily{
		ID:         uuid.NewString(),
		UserID:     uuid.New(),
		Generation: 0,
	}
	require.NoError(t, st.CreateFamily(context.Background(), fam, ttl))
	return fam
}

func TestIntegration_CreateFamily_And_SingleRotation(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	fam := newFamily(t, st, time.Hour)

	// поля записаны как есть.
	m, err := st.Client().HGetAll(ctx, sessionKey(fam.ID)).Result()
	require.NoError(t, err)
	require.Equal(t, fam.UserID.String(), m["uid"])
	require.Equal(t, "0", m["gen"])

	// единственная ротация: 0 -> 1.
	newGen, err := st.RotateFamily(ctx, fam.ID, 0, time.Hour)
	require.NoError(t, err)
	require.Equal(t, uint64(1), newGen)

	m, err = st.Client().HGetAll(ctx, sessionKey(fam.ID)).Result()
	require.NoError(t, err)
	require.Equal(t, "1", m["gen"])
}

func TestIntegration_Rotate_RefreshesTTL(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	fam := newFamily(t, st, 2*time.Second)

	_, err := st.RotateFamily(ctx, fam.ID, 0, time.Hour)
	require.NoError(t, err)

	ttl, err := st.Client().PTTL(ctx, sessionKey(fam.ID)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 2*time.Second, "ротация должна сдвинуть TTL на полный срок refresh-токена")
}

func TestIntegration_Rotate_Replay_RevokesWholeFamily(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	fam := newFamily(t, st, time.Hour)

	// 1) Легитимная ротация 0 -> 1.
	_, err := st.RotateFamily(ctx, fam.ID, 0, time.Hour)
	require.NoError(t, err)

	// 2) Повтор того же поколения — детект кражи, семейство удалено.
	_, err = st.RotateFamily(ctx, fam.ID, 0, time.Hour)
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrGenerationMismatch)

	n, err := st.Client().Exists(ctx, sessionKey(fam.ID)).Result()
	require.NoError(t, err)
	require.Zero(t, n, "после детекта семейство должно исчезнуть из хранилища")

	// 3) "Легитимное" поколение 1 тоже больше не работает.
	_, err = st.RotateFamily(ctx, fam.ID, 1, time.Hour)
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_Rotate_AbsentFamily_NotFound(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	_, err := st.RotateFamily(context.Background(), uuid.NewString(), 0, time.Hour)
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_Rotate_Concurrent_ExactlyOneWinner(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	const workers = 8

	ctx := context.Background()
	fam := newFamily(t, st, time.Hour)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		wins       int
		refused    int
		unexpected []error
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			_, err := st.RotateFamily(ctx, fam.ID, 0, time.Hour)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			// проигравшие падают только этими двумя ошибками.
			case errorsIsAny(err, storage.ErrGenerationMismatch, storage.ErrNotFound):
				refused++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}

	close(start)
	wg.Wait()

	require.Empty(t, unexpected)
	require.Equal(t, 1, wins, "ровно один конкурент должен выиграть ротацию")
	require.Equal(t, workers-1, refused)
}

func TestIntegration_RevokeFamily_CrossFamilyIsolation(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()
	famA := newFamily(t, st, time.Hour)
	famB := newFamily(t, st, time.Hour)

	require.NoError(t, st.RevokeFamily(ctx, famA.ID))
	// повторный отзыв — no-op.
	require.NoError(t, st.RevokeFamily(ctx, famA.ID))

	// семейство B живёт своей жизнью.
	newGen, err := st.RotateFamily(ctx, famB.ID, 0, time.Hour)
	require.NoError(t, err)
	require.Equal(t, uint64(1), newGen)
}

func TestIntegration_CountFamilies(t *testing.T) {
	st, cleanup := startRedis(t)
	defer cleanup()

	ctx := context.Background()

	n, err := st.CountFamilies(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	for i := 0; i < 3; i++ {
		newFamily(t, st, time.Hour)
	}

	n, err = st.CountFamilies(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

// errorsIsAny — true, если err соответствует хотя бы одной из целей.
func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
