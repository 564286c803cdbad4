package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/avast/retry-go/v5"
	gomysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/xela07ax/riemann-mysql/internal/domain"
	"github.com/xela07ax/riemann-mysql/internal/health"
)

// StatusQuery: фиксированный диагностический запрос.
const StatusQuery = "SHOW SLAVE STATUS"

// ConnState: состояние дескриптора соединения.
type ConnState int

const (
	StateDown ConnState = iota
	StateUp
)

func (s ConnState) String() string {
	if s == StateUp {
		return "up"
	}
	return "down"
}

// Options: параметры подключения к реплике.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string // Пусто: без базы по умолчанию
}

// Opener открывает *sql.DB. Подменяется в тестах.
type Opener func(ctx context.Context) (*sql.DB, error)

// ReplicaRepo владеет соединением с наблюдаемой репликой.
// Не потокобезопасен: вызывается только из цикла агента.
type ReplicaRepo struct {
	opts   Options
	open   Opener
	logger *zap.Logger

	db    *sql.DB
	state ConnState
}

// NewReplicaRepo создает репозиторий. Соединение поднимается лениво в EnsureConnected.
func NewReplicaRepo(opts Options, logger *zap.Logger) *ReplicaRepo {
	r := &ReplicaRepo{
		opts:   opts,
		logger: logger.Named("replica-repo"),
	}
	r.open = r.openDriver
	return r
}

// WithOpener подменяет способ открытия соединения.
func (r *ReplicaRepo) WithOpener(open Opener) *ReplicaRepo {
	r.open = open
	return r
}

// State возвращает текущее состояние дескриптора.
func (r *ReplicaRepo) State() ConnState {
	return r.state
}

// Connected: true, если дескриптор в состоянии UP.
func (r *ReplicaRepo) Connected() bool {
	return r.state == StateUp
}

func (r *ReplicaRepo) openDriver(_ context.Context) (*sql.DB, error) {
	cfg := gomysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(r.opts.Host, strconv.Itoa(r.opts.Port))
	cfg.User = r.opts.User
	cfg.Passwd = r.opts.Password
	cfg.DBName = r.opts.Database
	cfg.Logger = zap.NewStdLog(r.logger.Named("driver"))

	connector, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	// Один агент: одно соединение
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// EnsureConnected гарантирует рабочее соединение на этот цикл.
// Поднятое соединение проверяется ping; при неудаче оно закрывается и делается
// ровно одна новая попытка подключения. Ошибки не фатальны.
func (r *ReplicaRepo) EnsureConnected(ctx context.Context) error {
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(2),
		retry.LastErrorOnly(true),
		// Повтор только после протухшего соединения, а не после неудачного connect
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrStaleConnection)
		}),
		retry.DelayType(func(_ uint, _ error, _ retry.DelayContext) time.Duration {
			return 0
		}),
	).Do(func() error {
		if r.state == StateUp {
			if err := r.db.PingContext(ctx); err != nil {
				r.logger.Warn("liveness check failed, dropping connection", zap.Error(err))
				r.teardown()
				return fmt.Errorf("%w: %v", ErrStaleConnection, err)
			}
			return nil
		}
		return r.connect(ctx)
	})
}

func (r *ReplicaRepo) connect(ctx context.Context) error {
	db, err := r.open(ctx)
	if err != nil {
		r.logConnectFailure(err)
		return fmt.Errorf("mysql: cannot allocate connection: %w", err)
	}

	// sql.OpenDB ленивый: реальное подключение и аутентификация происходят здесь
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		r.logConnectFailure(err)
		return fmt.Errorf("mysql: cannot connect to %s: %w", r.addr(), err)
	}

	r.db = db
	r.state = StateUp
	r.logger.Info("connected to mysql", zap.String("addr", r.addr()), zap.String("user", r.opts.User))
	return nil
}

// Пароль в лог не попадает
func (r *ReplicaRepo) logConnectFailure(err error) {
	r.logger.Warn("cannot connect to mysql",
		zap.String("host", r.opts.Host),
		zap.Int("port", r.opts.Port),
		zap.String("user", r.opts.User),
		zap.String("database", r.opts.Database),
		zap.Error(err),
	)
}

func (r *ReplicaRepo) addr() string {
	return net.JoinHostPort(r.opts.Host, strconv.Itoa(r.opts.Port))
}

// connectionLost отличает обрыв соединения от ошибок самого запроса (права, синтаксис).
func connectionLost(err error) bool {
	return errors.Is(err, gomysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn)
}

func (r *ReplicaRepo) teardown() {
	if r.db != nil {
		_ = r.db.Close()
	}
	r.db = nil
	r.state = StateDown
}

// FetchStatusRow выполняет SHOW SLAVE STATUS и читает ровно одну строку.
// Результат закрывается на любой ветке до возврата.
func (r *ReplicaRepo) FetchStatusRow(ctx context.Context) (domain.StatusRow, error) {
	if r.state != StateUp {
		return nil, ErrNotConnected
	}

	rows, err := r.db.QueryContext(ctx, StatusQuery)
	if err != nil {
		if connectionLost(err) {
			r.logger.Warn("connection lost during query, dropping connection", zap.Error(err))
			r.teardown()
		}
		return nil, &GatherError{Kind: KindQuery, Cause: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &GatherError{Kind: KindResult, Cause: err}
	}

	if !rows.Next() {
		// Пустой результат: либо это не реплика, либо чтение оборвалось
		return nil, &GatherError{Kind: KindNoRow, Cause: rows.Err()}
	}

	row := make(domain.StatusRow, len(cols))
	if !row.Valid() {
		return nil, &GatherError{Kind: KindFieldsMissing}
	}

	dest := make([]any, len(cols))
	for i := range row {
		dest[i] = &row[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, &GatherError{Kind: KindResult, Cause: err}
	}
	return row, nil
}

// Gather: сбор и оценка за один вызов. Любой сбой чтения превращается
// в UNKNOWN с текстом ошибки, цикл при этом не прерывается.
func (r *ReplicaRepo) Gather(ctx context.Context) domain.Assessment {
	row, err := r.FetchStatusRow(ctx)
	if err != nil {
		r.logger.Warn("unable to gather replication status", zap.Error(err))
		return domain.Unknown(err.Error())
	}

	a := health.Evaluate(row)
	fields := []zap.Field{
		zap.Stringer("state", a.State),
		zap.String("description", a.Description),
	}
	if a.Metric != nil {
		fields = append(fields, zap.Int64("seconds_behind", *a.Metric))
	}
	r.logger.Debug("gathered", fields...)
	return a
}

// Close закрывает соединение при остановке агента.
func (r *ReplicaRepo) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.state = StateDown
	return err
}
