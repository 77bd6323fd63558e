package channel

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/reference"
)

var fields = model.FieldMap{
	SaleDate:      "FECHA_VENTA",
	Branch:        "SEDE",
	Partner:       "ALIADO COMERCIAL",
	Responsible:   "RESPONSABLE",
	Category:      "CATEGORIA",
	LinkedOrder:   "PEDIDO_VINCULADO",
	OriginalOrder: "PEDIDO_ORIGINAL",
}

func day(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func tx(sale string, header map[string]string) *model.Transaction {
	t := &model.Transaction{Header: header}
	if sale != "" {
		t.SaleDate = day(sale)
	}
	return t
}

func TestDateGate(t *testing.T) {
	r := DateGate{ID: "digital-2024", Assign: "DIGITAL", Since: *day("2024-03-01"), Responsibles: []string{"ANA", " LUIS "}}

	tests := []struct {
		name string
		tx   *model.Transaction
		want bool
	}{
		{"on cutoff", tx("2024-03-01", map[string]string{"RESPONSABLE": "ANA"}), true},
		{"after cutoff trimmed", tx("2024-05-10", map[string]string{"RESPONSABLE": "LUIS  "}), true},
		{"before cutoff", tx("2024-02-29", map[string]string{"RESPONSABLE": "ANA"}), false},
		{"other responsible", tx("2024-03-02", map[string]string{"RESPONSABLE": "PEDRO"}), false},
		{"no sale date", tx("", map[string]string{"RESPONSABLE": "ANA"}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Match(tt.tx, fields))
		})
	}
}

func TestCategoryRules(t *testing.T) {
	cat := Category{ID: "motos", Assign: "MOTOS", Category: "MOTOCICLETAS", ExcludeResponsibles: []string{"ANA"}}
	set := CategorySet{ID: "materiales", Assign: "MATERIALES", Categories: []string{"CEMENTO", "LADRILLO"}, ExcludeResponsibles: []string{"LUIS"}}
	pc := PartnerCategory{ID: "aliado-muebles", Assign: "ALIADOS", Partner: "MUEBLES SAS", Category: "MUEBLES"}

	tests := []struct {
		name string
		rule Rule
		h    map[string]string
		want bool
	}{
		{"category match", cat, map[string]string{"CATEGORIA": "MOTOCICLETAS", "RESPONSABLE": "PEDRO"}, true},
		{"category excluded responsible", cat, map[string]string{"CATEGORIA": "MOTOCICLETAS", "RESPONSABLE": "ANA"}, false},
		{"category mismatch", cat, map[string]string{"CATEGORIA": "MUEBLES"}, false},
		{"set member", set, map[string]string{"CATEGORIA": "LADRILLO"}, true},
		{"set excluded", set, map[string]string{"CATEGORIA": "CEMENTO", "RESPONSABLE": "LUIS"}, false},
		{"set blank category", set, map[string]string{}, false},
		{"partner and category", pc, map[string]string{"ALIADO COMERCIAL": "MUEBLES SAS", "CATEGORIA": "MUEBLES"}, true},
		{"partner only", pc, map[string]string{"ALIADO COMERCIAL": "MUEBLES SAS", "CATEGORIA": "COLCHONES"}, false},
		{"partner case differs", pc, map[string]string{"ALIADO COMERCIAL": "Muebles SAS", "CATEGORIA": "MUEBLES"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Match(tx("", tt.h), fields))
		})
	}
}

func newClassifier(rules ...Rule) *Classifier {
	return &Classifier{
		Rules: rules,
		Table: reference.NewChannelTable([]reference.ChannelEntry{
			{Branch: "TIENDA A", Channel: "RETAIL"},
			{Branch: "Portal Web", Channel: "DIGITAL"},
		}),
		Fields: fields,
	}
}

func TestClassify_OverrideBeatsFallback(t *testing.T) {
	c := newClassifier(DateGate{ID: "gate", Assign: "CORPORATIVO", Since: *day("2024-01-01"), Responsibles: []string{"X"}})

	overridden := tx("2024-03-01", map[string]string{"SEDE": "TIENDA A", "RESPONSABLE": "X"})
	require.True(t, c.Classify(overridden))
	assert.Equal(t, "CORPORATIVO", overridden.Channel)
	assert.Equal(t, "gate", overridden.ChannelRule)

	fallback := tx("2024-03-01", map[string]string{"SEDE": "  tienda a ", "RESPONSABLE": "Y"})
	require.True(t, c.Classify(fallback))
	assert.Equal(t, "RETAIL", fallback.Channel)
	assert.Equal(t, ResolvedByBranch, fallback.ChannelRule)

	unknown := tx("2024-03-01", map[string]string{"SEDE": "TIENDA Z"})
	assert.False(t, c.Classify(unknown))
	assert.Empty(t, unknown.Channel)
}

func TestClassify_FirstMatchWins(t *testing.T) {
	c := newClassifier(
		Category{ID: "first", Assign: "UNO", Category: "MUEBLES"},
		PartnerCategory{ID: "second", Assign: "DOS", Partner: "P", Category: "MUEBLES"},
	)
	x := tx("", map[string]string{"CATEGORIA": "MUEBLES", "ALIADO COMERCIAL": "P"})
	c.Classify(x)
	assert.Equal(t, "UNO", x.Channel)

	c.Rules[0], c.Rules[1] = c.Rules[1], c.Rules[0]
	y := tx("", map[string]string{"CATEGORIA": "MUEBLES", "ALIADO COMERCIAL": "P"})
	c.Classify(y)
	assert.Equal(t, "DOS", y.Channel)
}

func TestClassify_TwoIndependentDateGates(t *testing.T) {
	c := newClassifier(
		DateGate{ID: "gate-2023", Assign: "TELEVENTAS", Since: *day("2023-06-01"), Responsibles: []string{"ANA"}},
		DateGate{ID: "gate-2024", Assign: "DIGITAL", Since: *day("2024-01-15"), Responsibles: []string{"LUIS"}},
	)
	a := tx("2023-07-01", map[string]string{"RESPONSABLE": "ANA"})
	l := tx("2024-02-01", map[string]string{"RESPONSABLE": "LUIS"})
	early := tx("2023-07-01", map[string]string{"RESPONSABLE": "LUIS"})
	c.Classify(a)
	c.Classify(l)
	c.Classify(early)
	assert.Equal(t, "TELEVENTAS", a.Channel)
	assert.Equal(t, "DIGITAL", l.Channel)
	assert.Empty(t, early.Channel)
}

func TestClassifyAll_CountsUnresolved(t *testing.T) {
	c := newClassifier()
	txs := []*model.Transaction{
		tx("", map[string]string{"SEDE": "TIENDA A"}),
		tx("", map[string]string{"SEDE": "NUEVA"}),
		tx("", map[string]string{"SEDE": "PORTAL WEB"}),
	}
	assert.Equal(t, 1, c.ClassifyAll(txs))
	assert.Equal(t, "DIGITAL", txs[2].Channel)
}

func TestPropagateLinkedOrders(t *testing.T) {
	orig := tx("", map[string]string{"PEDIDO_ORIGINAL": "P-1", "PEDIDO_VINCULADO": ""})
	orig.Channel = "DIGITAL"
	dup := tx("", map[string]string{"PEDIDO_ORIGINAL": "P-1"})
	dup.Channel = "RETAIL"
	linked := tx("", map[string]string{"PEDIDO_ORIGINAL": "P-2", "PEDIDO_VINCULADO": "P-1"})
	linked.Channel = "RETAIL"
	unresolvedLink := tx("", map[string]string{"PEDIDO_VINCULADO": "P-9"})

	txs := []*model.Transaction{orig, dup, linked, unresolvedLink}
	n := PropagateLinkedOrders(txs, fields.LinkedOrder, fields.OriginalOrder)

	assert.Equal(t, 1, n)
	assert.Equal(t, "DIGITAL", linked.Channel)
	assert.Equal(t, ResolvedByLinked, linked.ChannelRule)
	assert.Equal(t, "RETAIL", dup.Channel)
	assert.Empty(t, unresolvedLink.Channel)

	assert.Zero(t, PropagateLinkedOrders(txs, "", fields.OriginalOrder))
}

func TestPropagateLinkedOrders_SkipsUnresolvedSource(t *testing.T) {
	src := tx("", map[string]string{"PEDIDO_ORIGINAL": "P-1"})
	linked := tx("", map[string]string{"PEDIDO_VINCULADO": "P-1"})
	linked.Channel = "RETAIL"

	assert.Zero(t, PropagateLinkedOrders([]*model.Transaction{src, linked}, fields.LinkedOrder, fields.OriginalOrder))
	assert.Equal(t, "RETAIL", linked.Channel)
}

func TestRelabel(t *testing.T) {
	txs := []*model.Transaction{{Channel: "TIENDA VIRTUAL"}, {Channel: "RETAIL"}, {Channel: "TIENDA VIRTUAL"}}
	n := Relabel(txs, map[string]string{"TIENDA VIRTUAL": "DIGITAL"})
	assert.Equal(t, 2, n)
	for _, x := range txs {
		assert.NotEqual(t, "TIENDA VIRTUAL", x.Channel)
	}
	assert.Zero(t, Relabel(txs, nil))
}

func TestGate(t *testing.T) {
	ok := []*model.Transaction{{Channel: "RETAIL"}}
	assert.NoError(t, Gate(ok, fields))

	txs := make([]*model.Transaction, 0, 1000)
	for i := range 999 {
		txs = append(txs, &model.Transaction{Channel: "RETAIL", Header: map[string]string{"SEDE": fmt.Sprint(i)}})
	}
	txs = append(txs, &model.Transaction{Header: map[string]string{"SEDE": " tienda nueva "}})

	err := Gate(txs, fields)
	var ue *UnresolvedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 1, ue.Count)
	assert.Equal(t, []string{"TIENDA NUEVA"}, ue.Branches)
}

func TestGate_DistinctSortedBranches(t *testing.T) {
	txs := []*model.Transaction{
		{Header: map[string]string{"SEDE": "ZETA"}},
		{Header: map[string]string{"SEDE": "alfa"}},
		{Header: map[string]string{"SEDE": "ZETA"}},
		{Header: map[string]string{}},
	}
	err := Gate(txs, fields)
	var ue *UnresolvedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 4, ue.Count)
	assert.Equal(t, []string{"", "ALFA", "ZETA"}, ue.Branches)
	assert.Contains(t, err.Error(), "(blank), ALFA, ZETA")
}
