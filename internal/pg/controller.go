package pg

import (
	"context"
	"database/sql"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"odatagate/internal/descriptor"
	"odatagate/internal/dispatch"
)

var (
	// ErrNoRows: update не затронул ни одной строки.
	ErrNoRows = errors.New("no rows affected")
	// ErrConflict: нарушение уникальности (23505).
	ErrConflict = errors.New("unique violation")
)

var (
	ulidType      = reflect.TypeOf(ulid.ULID{})
	durationType  = reflect.TypeOf(time.Duration(0))
	scannerType   = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	textMarshaler = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshal = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	stringerType  = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	byteSliceType = reflect.TypeOf([]byte(nil))
	timeType      = reflect.TypeOf(time.Time{})
)

type column struct {
	name  string
	index []int
	key   bool
	json  bool
	enum  descriptor.EnumEncoding
}

// TableController хранит сущности T в таблице, созданной GenerateDDL.
// Реализует dispatch.Controller[T] и dispatch.Lister[T].
type TableController[T any] struct {
	db      *sql.DB
	table   string
	columns []column
	keys    []column
	logger  *zap.Logger
}

var (
	_ dispatch.Controller[struct{}] = (*TableController[struct{}])(nil)
	_ dispatch.Lister[struct{}]     = (*TableController[struct{}])(nil)
)

func NewTableController[T any](db *sql.DB, namespace, entitySet string, logger *zap.Logger) (*TableController[T], error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fields, err := descriptor.Describe(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	c := &TableController[T]{
		db:     db,
		table:  TableName(namespace, entitySet),
		logger: logger.With(zap.String("table", entitySet)),
	}
	for _, f := range fields {
		if f.IsRelationship() {
			continue
		}
		col := column{
			name:  f.Name,
			index: f.Index,
			key:   f.Key,
			json:  f.IsCollection(),
			enum:  f.Enum,
		}
		c.columns = append(c.columns, col)
		if f.Key {
			c.keys = append(c.keys, col)
		}
	}
	if len(c.keys) == 0 {
		return nil, errors.Errorf("type '%s' has no key field", reflect.TypeFor[T]())
	}
	return c, nil
}

func (c *TableController[T]) selectList() string {
	names := make([]string, 0, len(c.columns))
	for _, col := range c.columns {
		names = append(names, sqlIdent(col.name))
	}
	return strings.Join(names, ", ")
}

func (c *TableController[T]) Read(ctx context.Context, keys dispatch.Keys) (*T, error) {
	args, err := c.keyArgs(keys)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("select %s from %s where %s", c.selectList(), c.table, c.keyWhere(1))
	row := c.db.QueryRowContext(ctx, q, args...)
	out, err := c.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", c.table)
	}
	return out, nil
}

func (c *TableController[T]) List(ctx context.Context) ([]*T, error) {
	order := make([]string, 0, len(c.keys))
	for _, k := range c.keys {
		order = append(order, sqlIdent(k.name))
	}
	q := fmt.Sprintf("select %s from %s order by %s", c.selectList(), c.table, strings.Join(order, ", "))
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", c.table)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := c.scan(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "list %s", c.table)
		}
		out = append(out, v)
	}
	return out, errors.Wrapf(rows.Err(), "list %s", c.table)
}

func (c *TableController[T]) Create(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, errors.New("nil entity")
	}
	rv := reflect.ValueOf(entity).Elem()
	names := make([]string, 0, len(c.columns))
	marks := make([]string, 0, len(c.columns))
	args := make([]any, 0, len(c.columns))
	for i, col := range c.columns {
		v, err := toArg(col, rv.FieldByIndex(col.index))
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", col.name)
		}
		names = append(names, sqlIdent(col.name))
		marks = append(marks, fmt.Sprintf("$%d", i+1))
		args = append(args, v)
	}
	q := fmt.Sprintf("insert into %s (%s) values (%s)", c.table, strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
		return nil, c.classify(err, "create")
	}
	out := *entity
	return &out, nil
}

func (c *TableController[T]) Update(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, errors.New("nil entity")
	}
	rv := reflect.ValueOf(entity).Elem()
	var sets []string
	var args []any
	for _, col := range c.columns {
		if col.key {
			continue
		}
		v, err := toArg(col, rv.FieldByIndex(col.index))
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", col.name)
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", sqlIdent(col.name), len(args)))
	}
	keyArgs, err := c.entityKeyArgs(rv)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		// только ключевые колонки: проверяем существование
		found, err := c.exists(ctx, keyArgs)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.Wrapf(ErrNoRows, "update %s", c.table)
		}
		out := *entity
		return &out, nil
	}
	q := fmt.Sprintf("update %s set %s where %s", c.table, strings.Join(sets, ", "), c.keyWhere(len(args)+1))
	res, err := c.db.ExecContext(ctx, q, append(args, keyArgs...)...)
	if err != nil {
		return nil, c.classify(err, "update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrapf(err, "update %s", c.table)
	}
	if n == 0 {
		return nil, errors.Wrapf(ErrNoRows, "update %s", c.table)
	}
	out := *entity
	return &out, nil
}

func (c *TableController[T]) Delete(ctx context.Context, entity *T) (bool, error) {
	if entity == nil {
		return false, errors.New("nil entity")
	}
	keyArgs, err := c.entityKeyArgs(reflect.ValueOf(entity).Elem())
	if err != nil {
		return false, err
	}
	q := fmt.Sprintf("delete from %s where %s", c.table, c.keyWhere(1))
	res, err := c.db.ExecContext(ctx, q, keyArgs...)
	if err != nil {
		return false, c.classify(err, "delete")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "delete %s", c.table)
	}
	return n > 0, nil
}

func (c *TableController[T]) exists(ctx context.Context, keyArgs []any) (bool, error) {
	var one int
	q := fmt.Sprintf("select 1 from %s where %s", c.table, c.keyWhere(1))
	err := c.db.QueryRowContext(ctx, q, keyArgs...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read %s", c.table)
	}
	return true, nil
}

func (c *TableController[T]) classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		c.logger.Debug("unique violation", zap.String("op", op), zap.String("constraint", pgErr.ConstraintName))
		return errors.Wrapf(ErrConflict, "%s %s: %s", op, c.table, pgErr.ConstraintName)
	}
	return errors.Wrapf(err, "%s %s", op, c.table)
}

// "id" = $1 and "code" = $2 ...
func (c *TableController[T]) keyWhere(first int) string {
	parts := make([]string, 0, len(c.keys))
	for i, k := range c.keys {
		parts = append(parts, fmt.Sprintf("%s = $%d", sqlIdent(k.name), first+i))
	}
	return strings.Join(parts, " and ")
}

func (c *TableController[T]) keyArgs(keys dispatch.Keys) ([]any, error) {
	if len(keys) == 1 && keys[0].Name == "" && len(c.keys) == 1 {
		return []any{keyValue(keys[0].Value)}, nil
	}
	args := make([]any, 0, len(c.keys))
	for _, k := range c.keys {
		v, ok := keys.Get(k.name)
		if !ok {
			return nil, errors.Errorf("missing key '%s'", k.name)
		}
		args = append(args, keyValue(v))
	}
	return args, nil
}

func (c *TableController[T]) entityKeyArgs(rv reflect.Value) ([]any, error) {
	args := make([]any, 0, len(c.keys))
	for _, k := range c.keys {
		v, err := toArg(k, rv.FieldByIndex(k.index))
		if err != nil {
			return nil, errors.Wrapf(err, "key %s", k.name)
		}
		args = append(args, v)
	}
	return args, nil
}

func keyValue(v any) any {
	if id, ok := v.(ulid.ULID); ok {
		return id.String()
	}
	return v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (c *TableController[T]) scan(row rowScanner) (*T, error) {
	raw := make([]any, len(c.columns))
	dest := make([]any, len(c.columns))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	out := new(T)
	rv := reflect.ValueOf(out).Elem()
	for i, col := range c.columns {
		if err := fromColumn(col, rv.FieldByIndex(col.index), raw[i]); err != nil {
			return nil, errors.Wrapf(err, "column %s", col.name)
		}
	}
	return out, nil
}

// toArg переводит значение поля в аргумент запроса.
func toArg(col column, fv reflect.Value) (any, error) {
	for fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil, nil
		}
		fv = fv.Elem()
	}
	if col.json {
		if fv.Kind() == reflect.Slice && fv.IsNil() {
			return nil, nil
		}
		b, err := json.Marshal(fv.Interface())
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	switch {
	case fv.Type() == ulidType:
		return fv.Interface().(ulid.ULID).String(), nil
	case fv.Type() == durationType:
		return fv.Int(), nil
	case col.enum == descriptor.EnumString:
		return enumText(fv)
	case col.enum == descriptor.EnumOrdinal:
		return enumOrdinal(fv)
	}
	return fv.Interface(), nil
}

func enumText(fv reflect.Value) (any, error) {
	switch {
	case fv.Type().Implements(textMarshaler):
		b, err := fv.Interface().(encoding.TextMarshaler).MarshalText()
		return string(b), err
	case fv.Type().Implements(stringerType):
		return fv.Interface().(fmt.Stringer).String(), nil
	case fv.Kind() == reflect.String:
		return fv.String(), nil
	}
	return nil, errors.Errorf("enum %s has no text form", fv.Type())
}

func enumOrdinal(fv reflect.Value) (any, error) {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if fv.Uint() > math.MaxInt64 {
			return nil, errors.Errorf("enum ordinal %d overflows", fv.Uint())
		}
		return int64(fv.Uint()), nil
	}
	return nil, errors.Errorf("enum %s is not an integer", fv.Type())
}

// fromColumn записывает значение драйвера в поле.
func fromColumn(col column, fv reflect.Value, v any) error {
	if v == nil {
		fv.SetZero()
		return nil
	}
	if fv.Kind() == reflect.Pointer {
		p := reflect.New(fv.Type().Elem())
		if err := fromColumn(col, p.Elem(), v); err != nil {
			return err
		}
		fv.Set(p)
		return nil
	}
	if col.json {
		var b []byte
		switch t := v.(type) {
		case []byte:
			b = t
		case string:
			b = []byte(t)
		default:
			return errors.Errorf("jsonb: unexpected %T", v)
		}
		return json.Unmarshal(b, fv.Addr().Interface())
	}
	if col.enum == descriptor.EnumString && fv.Addr().Type().Implements(textUnmarshal) {
		s, ok := v.(string)
		if !ok {
			return errors.Errorf("enum: unexpected %T", v)
		}
		return fv.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
	}
	if fv.Addr().Type().Implements(scannerType) {
		return fv.Addr().Interface().(sql.Scanner).Scan(v)
	}

	switch t := v.(type) {
	case int64:
		return setInt(fv, t)
	case float64:
		switch fv.Kind() {
		case reflect.Float32, reflect.Float64:
			fv.SetFloat(t)
			return nil
		}
	case bool:
		if fv.Kind() == reflect.Bool {
			fv.SetBool(t)
			return nil
		}
	case string:
		if fv.Kind() == reflect.String {
			fv.SetString(t)
			return nil
		}
		if fv.Type() == byteSliceType {
			fv.SetBytes([]byte(t))
			return nil
		}
	case []byte:
		if fv.Type() == byteSliceType {
			fv.SetBytes(append([]byte(nil), t...))
			return nil
		}
		if fv.Kind() == reflect.String {
			fv.SetString(string(t))
			return nil
		}
	case time.Time:
		if fv.Type() == timeType {
			fv.Set(reflect.ValueOf(t))
			return nil
		}
	}
	return errors.Errorf("cannot assign %T to %s", v, fv.Type())
}

func setInt(fv reflect.Value, n int64) error {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fv.OverflowInt(n) {
			return errors.Errorf("%d overflows %s", n, fv.Type())
		}
		fv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n < 0 || fv.OverflowUint(uint64(n)) {
			return errors.Errorf("%d overflows %s", n, fv.Type())
		}
		fv.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		fv.SetFloat(float64(n))
		return nil
	}
	return errors.Errorf("cannot assign int64 to %s", fv.Type())
}
