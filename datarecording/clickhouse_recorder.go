package datarecording

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fatih/structs"
	"github.com/joho/godotenv"
	"github.com/tebeka/atexit"
)

// ClickHouseRecorder is a DataRecorder that batches trace entries into a
// ClickHouse database. It is meant for long sweeps whose traces outgrow
// a local SQLite file.
type ClickHouseRecorder struct {
	conn      clickhouse.Conn
	batchSize int

	tables     map[string]*table
	entryCount int
}

// NewClickHouseRecorderFromEnv creates a ClickHouse recorder configured
// through the environment (optionally loaded from a .env file):
// DCACHESIM_CH_ADDR, DCACHESIM_CH_DATABASE, DCACHESIM_CH_USERNAME, and
// DCACHESIM_CH_PASSWORD.
func NewClickHouseRecorderFromEnv() DataRecorder {
	_ = godotenv.Load()

	addr := os.Getenv("DCACHESIM_CH_ADDR")
	if addr == "" {
		addr = "localhost:9000"
	}

	return NewClickHouseRecorder(
		addr,
		os.Getenv("DCACHESIM_CH_DATABASE"),
		os.Getenv("DCACHESIM_CH_USERNAME"),
		os.Getenv("DCACHESIM_CH_PASSWORD"),
	)
}

// NewClickHouseRecorder creates a ClickHouse recorder. The recorder
// flushes on process exit.
func NewClickHouseRecorder(
	addr, database, username, password string,
) DataRecorder {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		DialTimeout: time.Second * 30,
	})
	if err != nil {
		panic(fmt.Errorf("failed to connect to ClickHouse: %w", err))
	}

	if err := conn.Ping(context.Background()); err != nil {
		panic(fmt.Errorf("failed to ping ClickHouse: %w", err))
	}

	r := &ClickHouseRecorder{
		conn:      conn,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { r.Flush() })

	return r
}

func (r *ClickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	if err := fieldsMustBeFlat(sampleEntry); err != nil {
		panic(err)
	}

	columns := []string{}
	types := reflect.TypeOf(sampleEntry)
	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)
		columns = append(columns,
			field.Name+" "+clickHouseType(field.Type.Kind()))
	}

	createSQL := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY %s",
		tableName,
		strings.Join(columns, ", "),
		types.Field(0).Name,
	)

	if err := r.conn.Exec(context.Background(), createSQL); err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &table{}
}

func (r *ClickHouseRecorder) InsertData(tableName string, entry any) {
	table, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	table.entries = append(table.entries, entry)

	r.entryCount++
	if r.entryCount >= r.batchSize {
		r.Flush()
	}
}

func (r *ClickHouseRecorder) ListTables() []string {
	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	return tables
}

func (r *ClickHouseRecorder) Flush() {
	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for tableName, table := range r.tables {
		if len(table.entries) == 0 {
			continue
		}

		names := structs.Names(table.entries[0])
		batch, err := r.conn.PrepareBatch(ctx, fmt.Sprintf(
			"INSERT INTO %s (%s)", tableName, strings.Join(names, ", ")))
		if err != nil {
			panic(err)
		}

		for _, entry := range table.entries {
			values := []any{}

			v := reflect.ValueOf(entry)
			for i := 0; i < v.NumField(); i++ {
				values = append(values, v.Field(i).Interface())
			}

			if err := batch.Append(values...); err != nil {
				panic(err)
			}
		}

		if err := batch.Send(); err != nil {
			panic(err)
		}

		table.entries = nil
	}

	r.entryCount = 0
}

func clickHouseType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int, reflect.Int64:
		return "Int64"
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return "Int32"
	case reflect.Uint, reflect.Uint64:
		return "UInt64"
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return "UInt32"
	case reflect.Float32, reflect.Float64:
		return "Float64"
	case reflect.String:
		return "String"
	default:
		panic(fmt.Sprintf("kind %s is not recordable", kind))
	}
}
