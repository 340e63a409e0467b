package schema

import (
	"database/sql"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// Test Data Structures
// =========================================================================

type User struct {
	ID        int64
	Name      *string
	Age       int
	CreatedAt time.Time
	secret    string
}

type Account struct {
	Owner   string `db:"owner"`
	Number  int64  `db:"number;primary"`
	Balance float64
	Note    sql.NullString
	Ignored string `db:"-"`
}

type Address struct {
	City string
	Zip  string
}

type Customer struct {
	ID       int64
	FullName string `db:"column:name"`
	Address  Address
	Billing  *Address
}

type Audit struct {
	CreatedBy string
	UpdatedBy string
}

type Document struct {
	ID string `db:"id;generator:uuid"`
	Audit
	Title string
}

type Legacy struct {
	Code string
}

func (Legacy) TableName() string { return "tbl_legacy" }

type UserAccount struct {
	UserID int
}

type Empty struct{}

func strPtr(s string) *string { return &s }

// =========================================================================
// Naming Tests
// =========================================================================

func TestNamingConversions(t *testing.T) {
	tests := []struct {
		in     string
		snake  string
		camel  string
		pascal string
	}{
		{"ID", "id", "id", "Id"},
		{"UserID", "user_id", "userId", "UserId"},
		{"FirstName", "first_name", "firstName", "FirstName"},
		{"HTTPServer", "http_server", "httpServer", "HttpServer"},
		{"first_name", "first_name", "firstName", "FirstName"},
		{"Address2Line", "address2_line", "address2Line", "Address2Line"},
		{"", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.snake, ToSnakeCase(tt.in))
			assert.Equal(t, tt.camel, ToCamelCase(tt.in))
			assert.Equal(t, tt.pascal, ToPascalCase(tt.in))
		})
	}
}

func TestTableNaming(t *testing.T) {
	singular := New()
	plural := New(WithPluralTables(true))

	meta, err := singular.Introspect(reflect.TypeOf(UserAccount{}))
	require.NoError(t, err)
	assert.Equal(t, "user_account", meta.TableName)

	meta, err = plural.Introspect(reflect.TypeOf(UserAccount{}))
	require.NoError(t, err)
	assert.Equal(t, "user_accounts", meta.TableName)

	meta, err = plural.Introspect(reflect.TypeOf(Legacy{}))
	require.NoError(t, err)
	assert.Equal(t, "tbl_legacy", meta.TableName)
	assert.True(t, meta.HasCustomTableName)
}

// =========================================================================
// Introspection Tests
// =========================================================================

func TestIntrospect(t *testing.T) {
	ctx := New()

	tests := []struct {
		name        string
		inputType   reflect.Type
		wantColumns []string
		wantPK      string
		wantErr     dberr.Kind
	}{
		{
			name:        "first field is the key",
			inputType:   reflect.TypeOf(User{}),
			wantColumns: []string{"id", "name", "age", "created_at"},
			wantPK:      "id",
		},
		{
			name:        "explicit primary marker wins",
			inputType:   reflect.TypeOf(Account{}),
			wantColumns: []string{"owner", "number", "balance", "note"},
			wantPK:      "number",
		},
		{
			name:        "pointer type",
			inputType:   reflect.TypeOf(&User{}),
			wantColumns: []string{"id", "name", "age", "created_at"},
			wantPK:      "id",
		},
		{
			name:        "relations excluded from columns",
			inputType:   reflect.TypeOf(Customer{}),
			wantColumns: []string{"id", "name"},
			wantPK:      "id",
		},
		{
			name:        "embedded struct flattened",
			inputType:   reflect.TypeOf(Document{}),
			wantColumns: []string{"id", "created_by", "updated_by", "title"},
			wantPK:      "id",
		},
		{
			name:      "not a struct",
			inputType: reflect.TypeOf(42),
			wantErr:   dberr.KindTypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := ctx.Introspect(tt.inputType)
			if tt.wantErr != dberr.KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, dberr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantColumns, meta.Columns())
			require.NotNil(t, meta.PrimaryKey)
			assert.Equal(t, tt.wantPK, meta.PrimaryKey.DBName)
		})
	}
}

func TestIntrospectRelations(t *testing.T) {
	meta, err := New().Introspect(reflect.TypeOf(Customer{}))
	require.NoError(t, err)

	require.Len(t, meta.Relations, 2)
	assert.Equal(t, "address", meta.Relations[0].DBName)
	assert.Equal(t, "billing", meta.Relations[1].DBName)
	assert.True(t, meta.Relations[1].Relation)

	f, ok := meta.Lookup("fullName")
	require.True(t, ok)
	assert.Equal(t, "FullName", f.Name)
	f, ok = meta.Lookup("name")
	require.True(t, ok)
	assert.Equal(t, "FullName", f.Name)
}

func TestIntrospectCaches(t *testing.T) {
	var evicted []reflect.Type
	ctx := New(WithCacheSize(1), WithEvictionCallback(func(t reflect.Type, _ *EntityMeta) {
		evicted = append(evicted, t)
	}))

	first, err := ctx.Introspect(reflect.TypeOf(User{}))
	require.NoError(t, err)
	again, err := ctx.Introspect(reflect.TypeOf(&User{}))
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = ctx.Introspect(reflect.TypeOf(Account{}))
	require.NoError(t, err)
	assert.Equal(t, 1, ctx.CachedTypes())
	assert.Equal(t, []reflect.Type{reflect.TypeOf(User{})}, evicted)
}

func TestIntrospectConcurrent(t *testing.T) {
	ctx := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta, err := ctx.Introspect(reflect.TypeOf(Customer{}))
			assert.NoError(t, err)
			assert.Equal(t, "customer", meta.TableName)
		}()
	}
	wg.Wait()
}

func TestTagParser(t *testing.T) {
	parser := NewTagParser("db", NewColumnNamingStrategy(ColumnSnakeCase))

	tests := []struct {
		name    string
		tag     reflect.StructTag
		want    ParsedTag
		wantErr bool
	}{
		{"no tag", ``, ParsedTag{ColumnName: "user_name"}, false},
		{"column only", `db:"uname"`, ParsedTag{ColumnName: "uname"}, false},
		{"skip", `db:"-"`, ParsedTag{Skip: true}, false},
		{"column and flag", `db:"uid;primary"`, ParsedTag{ColumnName: "uid", Primary: true}, false},
		{"flag only", `db:"primary"`, ParsedTag{ColumnName: "user_name", Primary: true}, false},
		{"options", `db:"column:u;null;generator:ulid"`, ParsedTag{ColumnName: "u", Null: true, Generator: "ulid"}, false},
		{"unknown option", `db:"u;frobnicate"`, ParsedTag{}, true},
		{"unknown key", `db:"size:12"`, ParsedTag{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.ParseTag("UserName", tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

// =========================================================================
// Projection Tests
// =========================================================================

func TestProjectFieldsSelective(t *testing.T) {
	ctx := New()
	u := User{ID: 1, Name: nil}

	p, err := ctx.ProjectFields(u, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "age", "created_at"}, p.Columns)
	assert.NotContains(t, p.Columns, "name")

	p, err = ctx.ProjectFields(&u, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "age", "created_at"}, p.Columns)
	assert.Equal(t, []string{"ID", "Name", "Age", "CreatedAt"}, p.Names)
	require.Len(t, p.Values, 4)
	assert.Equal(t, int64(1), p.Values[0])
	assert.Nil(t, p.Values[1])
}

func TestProjectFieldsValuerNull(t *testing.T) {
	p, err := New().ProjectFields(Account{Owner: "ann", Number: 7}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "number", "balance"}, p.Columns)

	p, err = New().ProjectFields(Account{Owner: "ann", Note: sql.NullString{String: "x", Valid: true}}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner", "number", "balance", "note"}, p.Columns)
}

func TestProjectFieldsMap(t *testing.T) {
	p, err := New().ProjectFields(map[string]any{"name": "bob", "id": 1, "age": nil}, true)
	require.NoError(t, err)
	assert.Nil(t, p.Meta)
	assert.Equal(t, []string{"id", "name"}, p.Columns)
	assert.Equal(t, []any{1, "bob"}, p.Values)
}

func TestProjectFieldsErrors(t *testing.T) {
	ctx := New()

	_, err := ctx.ProjectFields(nil, false)
	assert.ErrorIs(t, err, dberr.ErrEmptyInput)

	_, err = ctx.ProjectFields((*User)(nil), false)
	assert.ErrorIs(t, err, dberr.ErrEmptyInput)

	_, err = ctx.ProjectFields(Empty{}, false)
	assert.ErrorIs(t, err, dberr.ErrEmptyInput)

	_, err = ctx.ProjectFields("nope", false)
	assert.ErrorIs(t, err, dberr.ErrTypeMismatch)
}

func TestResolvePrimaryKey(t *testing.T) {
	ctx := New()

	pk, err := ctx.ResolvePrimaryKey(User{})
	require.NoError(t, err)
	assert.Equal(t, "ID", pk.Name)

	pk, err = ctx.ResolvePrimaryKey(reflect.TypeOf(Account{}))
	require.NoError(t, err)
	assert.Equal(t, "Number", pk.Name)

	_, err = ctx.ResolvePrimaryKey(Empty{})
	assert.ErrorIs(t, err, dberr.ErrEmptyInput)

	col, val, err := ctx.PrimaryKeyValue(&Account{Number: 99})
	require.NoError(t, err)
	assert.Equal(t, "number", col)
	assert.Equal(t, int64(99), val)
}

func TestToParameterMap(t *testing.T) {
	ctx := New()

	in := map[string]any{"a": 1}
	out, err := ctx.ToParameterMap(in)
	require.NoError(t, err)
	out["b"] = 2
	assert.Equal(t, 2, in["b"], "map[string]any passes through unchanged")

	out, err = ctx.ToParameterMap(&Customer{ID: 3, FullName: "Zed", Address: Address{City: "Oslo"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out["id"])
	assert.Equal(t, "Zed", out["fullName"])
	assert.Equal(t, Address{City: "Oslo"}, out["address"])
	assert.Contains(t, out, "billing")
	assert.Nil(t, out["billing"])

	out, err = ctx.ToParameterMap(map[string]int{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1}, out)

	out, err = ctx.ToParameterMap(nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = ctx.ToParameterMap(42)
	assert.ErrorIs(t, err, dberr.ErrTypeMismatch)
}

func TestFillGenerated(t *testing.T) {
	ctx := New()

	doc := &Document{Title: "t"}
	require.NoError(t, ctx.FillGenerated(doc))
	_, err := uuid.Parse(doc.ID)
	assert.NoError(t, err)

	doc2 := &Document{ID: "keep"}
	require.NoError(t, ctx.FillGenerated(doc2))
	assert.Equal(t, "keep", doc2.ID)
}

func TestGenerators(t *testing.T) {
	reg := DefaultGenerators()
	for _, name := range []string{"uuid", "ulid", "snowflake", "nanoid"} {
		gen, ok := reg.Get(name)
		require.True(t, ok, name)
		id, err := gen.Generate()
		require.NoError(t, err)
		assert.NotNil(t, id)
	}

	gen, _ := reg.Get("snowflake")
	a, _ := gen.Generate()
	b, _ := gen.Generate()
	assert.Less(t, a.(int64), b.(int64))

	gen, _ = reg.Get("nanoid")
	id, _ := gen.Generate()
	assert.Len(t, id.(string), 21)
}

// =========================================================================
// Assignment Tests
// =========================================================================

type assignTarget struct {
	S   string
	B   []byte
	I   int32
	U   uint8
	F   float64
	OK  bool
	P   *int
	T   time.Time
	N   sql.NullInt64
	Any any
}

func TestAssign(t *testing.T) {
	tests := []struct {
		name  string
		field string
		src   any
		want  any
	}{
		{"bytes to string", "S", []byte("hi"), "hi"},
		{"int to string", "S", int64(12), "12"},
		{"string to bytes", "B", "raw", []byte("raw")},
		{"int64 to int32", "I", int64(7), int32(7)},
		{"numeric text to int", "I", []byte("42"), int32(42)},
		{"int to uint8", "U", int64(200), uint8(200)},
		{"float32 to float64", "F", float32(1.5), 1.5},
		{"int to bool", "OK", int64(1), true},
		{"text to bool", "OK", "true", true},
		{"pointer target allocated", "P", int64(5), func() *int { v := 5; return &v }()},
		{"text to time", "T", "2024-01-02 03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"scanner", "N", int64(9), sql.NullInt64{Int64: 9, Valid: true}},
		{"nil zeroes", "S", nil, ""},
		{"interface takes anything", "Any", 3.5, 3.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := assignTarget{S: "seed"}
			fv := reflect.ValueOf(&target).Elem().FieldByName(tt.field)
			require.NoError(t, Assign(fv, tt.src))
			assert.Equal(t, tt.want, fv.Interface())
		})
	}
}

func TestAssignErrors(t *testing.T) {
	var target assignTarget
	v := reflect.ValueOf(&target).Elem()

	err := Assign(v.FieldByName("U"), int64(300))
	assert.ErrorIs(t, err, dberr.ErrTypeMismatch)

	err = Assign(v.FieldByName("I"), "abc")
	assert.ErrorIs(t, err, dberr.ErrTypeMismatch)

	err = Assign(v.FieldByName("T"), 12)
	assert.ErrorIs(t, err, dberr.ErrTypeMismatch)

	err = Assign(reflect.ValueOf(target).FieldByName("S"), "x")
	assert.ErrorIs(t, err, dberr.ErrReflectionAccess)
}

func TestAssignNumericLoss(t *testing.T) {
	var target struct {
		I64 int64
		I32 int32
		U8  uint8
		U64 uint64
	}
	v := reflect.ValueOf(&target).Elem()

	tests := []struct {
		name  string
		field string
		src   any
	}{
		{"uint64 above int64 range", "I64", uint64(math.MaxUint64)},
		{"uint64 just above int64 range", "I64", uint64(math.MaxInt64) + 1},
		{"fractional float to int", "I32", 2.9},
		{"negative fractional float to int", "I32", -0.5},
		{"float above int64 range", "I64", 1e19},
		{"nan to int", "I64", math.NaN()},
		{"infinity to int", "I64", math.Inf(1)},
		{"fractional float to uint", "U8", 1.25},
		{"negative float to uint", "U64", -1.0},
		{"float above uint64 range", "U64", 2e19},
		{"whole float overflowing uint8", "U8", 300.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := v.FieldByName(tt.field)
			before := fv.Interface()
			err := Assign(fv, tt.src)
			assert.ErrorIs(t, err, dberr.ErrTypeMismatch)
			assert.Equal(t, before, fv.Interface(), "target must be left untouched")
		})
	}

	require.NoError(t, Assign(v.FieldByName("I64"), uint64(math.MaxInt64)))
	assert.Equal(t, int64(math.MaxInt64), target.I64)
	require.NoError(t, Assign(v.FieldByName("I32"), 42.0))
	assert.Equal(t, int32(42), target.I32)
	require.NoError(t, Assign(v.FieldByName("U64"), float64(1<<53)))
	assert.Equal(t, uint64(1<<53), target.U64)
}

func TestUnexportedFieldsIgnored(t *testing.T) {
	meta, err := New().Introspect(reflect.TypeOf(User{secret: "s", Name: strPtr("x")}))
	require.NoError(t, err)
	_, ok := meta.FieldMap["secret"]
	assert.False(t, ok)
}
