// Package canon collapses redundant raw natureza ids into one surrogate id
// per distinct descricao.
package canon

import (
	"strconv"

	"github.com/sells-group/cda-warehouse/internal/etlerr"
	"github.com/sells-group/cda-warehouse/internal/model"
)

// Mapping is a total function from raw natureza id to surrogate id.
type Mapping struct {
	dimension []model.DimNatureza
	byRaw     map[int64]int64
}

// Build assigns surrogate ids 1..n to the distinct descricoes in order of
// first appearance in naturezas. Repeated identical (raw_id, descricao)
// rows are allowed; a raw id with an empty or a second, different descricao
// is a ReferentialAnomaly.
func Build(naturezas []model.Natureza) (*Mapping, error) {
	m := &Mapping{byRaw: make(map[int64]int64, len(naturezas))}
	byDescricao := make(map[string]int64)
	rawDescricao := make(map[int64]string, len(naturezas))

	for _, n := range naturezas {
		key := strconv.FormatInt(n.RawID, 10)
		if n.Descricao == "" {
			return nil, &etlerr.ReferentialAnomaly{Entity: "natureza", Key: key, Reason: "empty descricao"}
		}
		if prev, ok := rawDescricao[n.RawID]; ok {
			if prev != n.Descricao {
				return nil, &etlerr.ReferentialAnomaly{
					Entity: "natureza",
					Key:    key,
					Reason: "conflicting descricao " + strconv.Quote(prev) + " and " + strconv.Quote(n.Descricao),
				}
			}
			continue
		}
		rawDescricao[n.RawID] = n.Descricao

		id, ok := byDescricao[n.Descricao]
		if !ok {
			id = int64(len(m.dimension) + 1)
			byDescricao[n.Descricao] = id
			m.dimension = append(m.dimension, model.DimNatureza{ID: id, Descricao: n.Descricao})
		}
		m.byRaw[n.RawID] = id
	}
	return m, nil
}

// Dimension returns the deduplicated (surrogate, descricao) rows in id order.
func (m *Mapping) Dimension() []model.DimNatureza {
	out := make([]model.DimNatureza, len(m.dimension))
	copy(out, m.dimension)
	return out
}

// Surrogate returns the surrogate id for a raw id.
func (m *Mapping) Surrogate(raw int64) (int64, bool) {
	id, ok := m.byRaw[raw]
	return id, ok
}

// RawIDs returns how many raw ids the mapping covers.
func (m *Mapping) RawIDs() int { return len(m.byRaw) }

// Rewrite returns a copy of cdas with fk_natureza replaced by the surrogate
// id. A certificate whose raw id is unknown is a ReferentialAnomaly.
func (m *Mapping) Rewrite(cdas []model.Cda) ([]model.Cda, error) {
	out := make([]model.Cda, len(cdas))
	for i, c := range cdas {
		id, ok := m.byRaw[c.FkNatureza]
		if !ok {
			return nil, &etlerr.ReferentialAnomaly{
				Entity: "cda",
				Key:    c.NumCDA,
				Reason: "fk_natureza " + strconv.FormatInt(c.FkNatureza, 10) + " not in natureza source",
			}
		}
		c.FkNatureza = id
		out[i] = c
	}
	return out, nil
}

// Canonicalize builds the mapping and rewrites the facts in one step.
func Canonicalize(naturezas []model.Natureza, cdas []model.Cda) ([]model.DimNatureza, []model.Cda, error) {
	m, err := Build(naturezas)
	if err != nil {
		return nil, nil, err
	}
	rewritten, err := m.Rewrite(cdas)
	if err != nil {
		return nil, nil, err
	}
	return m.Dimension(), rewritten, nil
}
