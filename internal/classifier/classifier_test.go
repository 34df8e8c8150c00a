package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region mock

type mockConn struct {
	grpc.ClientConnInterface

	resp *structpb.Struct
	err  error

	lastMethod string
	lastReq    *structpb.Struct
}

func (m *mockConn) Invoke(_ context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	m.lastMethod = method
	m.lastReq = args.(*structpb.Struct)
	if m.err != nil {
		return m.err
	}
	proto.Merge(reply.(*structpb.Struct), m.resp)
	return nil
}

func matrixResponse(t *testing.T, rows ...[]any) *structpb.Struct {
	t.Helper()
	list := make([]any, len(rows))
	for i, r := range rows {
		list[i] = r
	}
	s, err := structpb.NewStruct(map[string]any{"matrix": list})
	require.NoError(t, err)
	return s
}

// #endregion mock

// #region remote-tests

func TestNewRemote(t *testing.T) {
	c, err := NewRemote("localhost:0")
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestRemotePredictProba_Success(t *testing.T) {
	mock := &mockConn{resp: matrixResponse(t, []any{0.2, 0.8}, []any{0.6, 0.4})}
	c := NewRemoteWithConn(mock)

	X := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	p, err := c.PredictProba(context.Background(), X)
	require.NoError(t, err)

	assert.Equal(t, MethodPredictProba, mock.lastMethod)
	r, cols := p.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 0.6, p.At(1, 0))

	sent := mock.lastReq.GetFields()["rows"].GetListValue().GetValues()
	require.Len(t, sent, 2)
	assert.Equal(t, 6.0, sent[1].GetListValue().GetValues()[2].GetNumberValue())

	assert.NoError(t, c.Close())
}

func TestRemoteDecisionFunction_Success(t *testing.T) {
	mock := &mockConn{resp: matrixResponse(t, []any{-0.5}, []any{1.5})}
	c := NewRemoteWithConn(mock)

	d, err := c.DecisionFunction(context.Background(), mat.NewDense(2, 1, []float64{0, 1}))
	require.NoError(t, err)
	assert.Equal(t, MethodDecisionFunction, mock.lastMethod)
	assert.Equal(t, -0.5, d.At(0, 0))
}

func TestRemote_RPCError(t *testing.T) {
	mock := &mockConn{err: errors.New("connection refused")}
	c := NewRemoteWithConn(mock)

	_, err := c.PredictProba(context.Background(), mat.NewDense(1, 1, []float64{1}))
	require.Error(t, err)
	assert.ErrorIs(t, err, mock.err)
}

func TestRemote_Unimplemented(t *testing.T) {
	mock := &mockConn{err: status.Error(codes.Unimplemented, "no decision function")}
	c := NewRemoteWithConn(mock)

	_, err := c.DecisionFunction(context.Background(), mat.NewDense(1, 1, []float64{1}))
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestRemote_RowCountMismatch(t *testing.T) {
	mock := &mockConn{resp: matrixResponse(t, []any{0.5, 0.5})}
	c := NewRemoteWithConn(mock)

	_, err := c.PredictProba(context.Background(), mat.NewDense(2, 1, []float64{1, 2}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 2")
}

func TestDecodeMatrix_Ragged(t *testing.T) {
	s := matrixResponse(t, []any{0.5, 0.5}, []any{1.0})
	_, err := DecodeMatrix(s, 2)
	require.Error(t, err)
}

func TestDecodeMatrix_MissingField(t *testing.T) {
	_, err := DecodeMatrix(&structpb.Struct{}, 1)
	require.Error(t, err)
}

// #endregion remote-tests

// #region table-tests

func TestTable(t *testing.T) {
	tbl, err := NewTable([]Entry{
		{Row: []float64{0, 1}, Proba: []float64{0.3, 0.7}, Decision: []float64{0.4}},
		{Row: []float64{1, 0}, Proba: []float64{0.9, 0.1}},
	})
	require.NoError(t, err)

	X := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	p, err := tbl.PredictProba(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, 0.9, p.At(0, 0))
	assert.Equal(t, 0.7, p.At(1, 1))

	_, err = tbl.DecisionFunction(context.Background(), X)
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = tbl.PredictProba(context.Background(), mat.NewDense(1, 2, []float64{5, 5}))
	require.ErrorIs(t, err, ErrUnknownRow)
}

func TestTableRejectsDuplicates(t *testing.T) {
	_, err := NewTable([]Entry{
		{Row: []float64{1}, Proba: []float64{1}},
		{Row: []float64{1}, Proba: []float64{1}},
	})
	require.Error(t, err)
}

// #endregion table-tests
