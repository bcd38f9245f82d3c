package etlerr

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputFormatError_Message(t *testing.T) {
	err := &InputFormatError{Dataset: "cda", Line: 7, Column: "ValSaldo", Value: "abc", Err: errors.New("not a number")}
	assert.Equal(t, `input format: dataset cda line 7 column "ValSaldo" value "abc": not a number`, err.Error())

	missing := MissingColumn("natureza", "idNaturezadivida")
	assert.Equal(t, `input format: dataset natureza column "idNaturezadivida": missing column`, missing.Error())
	assert.ErrorIs(t, missing, ErrMissingColumn)

	wrapped := InStage("read", eris.Wrap(missing, "read natureza"))
	var ife *InputFormatError
	require.True(t, errors.As(wrapped, &ife))
	assert.Equal(t, "idNaturezadivida", ife.Column)
}

func TestInStage_WrapsOnce(t *testing.T) {
	assert.NoError(t, InStage("load", nil))

	base := &ReferentialAnomaly{Entity: "natureza", Key: "9", Reason: "no descricao"}
	err := InStage("canonicalize", base)
	assert.Equal(t, "canonicalize", StageOf(err))
	assert.Contains(t, err.Error(), "stage canonicalize: referential anomaly: natureza 9")

	again := InStage("load", eris.Wrap(err, "outer"))
	assert.Equal(t, "canonicalize", StageOf(again))

	var ra *ReferentialAnomaly
	require.True(t, errors.As(again, &ra))
	assert.Equal(t, "9", ra.Key)
}

func TestStoreWriteError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &StoreWriteError{Table: "dw.fatos_cdas", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store write dw.fatos_cdas: connection reset", err.Error())
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(&DateParseError{Value: "31/02/x"}))
	assert.True(t, IsFatal(MissingColumn("cda", "numCDA")))
	assert.True(t, IsFatal(&StoreWriteError{Table: "t", Err: errors.New("x")}))
	assert.Equal(t, "", StageOf(errors.New("plain")))
}
