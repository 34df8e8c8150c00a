package classifier

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region methods

// Full gRPC method names served by the external model service. Request and
// response bodies are google.protobuf.Struct values: {"rows": [[...], ...]}
// in, {"matrix": [[...], ...]} out.
const (
	MethodPredictProba     = "/activequery.v1.ClassifierService/PredictProba"
	MethodDecisionFunction = "/activequery.v1.ClassifierService/DecisionFunction"
)

// #endregion methods

// #region client-struct

// Remote is a Classifier backed by a model served over gRPC. Training stays on
// the service side; Remote only reads predictions.
type Remote struct {
	conn *grpc.ClientConn // nil when a connection was injected
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor

// NewRemote connects to the model service at addr.
func NewRemote(addr string) (*Remote, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Remote{conn: conn, cc: conn}, nil
}

// NewRemoteWithConn creates a Remote over an injected connection.
// Used for testing without a real server.
func NewRemoteWithConn(cc grpc.ClientConnInterface) *Remote {
	return &Remote{cc: cc}
}

// #endregion constructor

// #region close

// Close shuts down the gRPC connection.
func (c *Remote) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region predict

// PredictProba asks the service for class probabilities.
func (c *Remote) PredictProba(ctx context.Context, X mat.Matrix) (*mat.Dense, error) {
	return c.call(ctx, MethodPredictProba, "predict proba", X)
}

// DecisionFunction asks the service for decision function values.
func (c *Remote) DecisionFunction(ctx context.Context, X mat.Matrix) (*mat.Dense, error) {
	return c.call(ctx, MethodDecisionFunction, "decision function", X)
}

func (c *Remote) call(ctx context.Context, method, what string, X mat.Matrix) (*mat.Dense, error) {
	req, err := EncodeRows(X)
	if err != nil {
		return nil, fmt.Errorf("%s encode: %w", what, err)
	}
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, method, req, resp); err != nil {
		if status.Code(err) == codes.Unimplemented {
			return nil, fmt.Errorf("%s rpc: %w: %w", what, ErrUnsupported, err)
		}
		return nil, fmt.Errorf("%s rpc: %w", what, err)
	}
	r, _ := X.Dims()
	m, err := DecodeMatrix(resp, r)
	if err != nil {
		return nil, fmt.Errorf("%s decode: %w", what, err)
	}
	return m, nil
}

// #endregion predict

// #region wire

// EncodeRows converts X into the request body {"rows": [[...], ...]}.
func EncodeRows(X mat.Matrix) (*structpb.Struct, error) {
	r, c := X.Dims()
	rows := make([]any, r)
	for i := 0; i < r; i++ {
		row := make([]any, c)
		for j := 0; j < c; j++ {
			row[j] = X.At(i, j)
		}
		rows[i] = row
	}
	return structpb.NewStruct(map[string]any{"rows": rows})
}

// DecodeMatrix reads the "matrix" field of a response and checks it has wantRows rows.
func DecodeMatrix(s *structpb.Struct, wantRows int) (*mat.Dense, error) {
	field, ok := s.GetFields()["matrix"]
	if !ok {
		return nil, fmt.Errorf("response has no matrix field")
	}
	rows := field.GetListValue().GetValues()
	if len(rows) != wantRows {
		return nil, fmt.Errorf("response has %d rows, want %d", len(rows), wantRows)
	}
	if wantRows == 0 {
		return nil, fmt.Errorf("response is empty")
	}

	width := len(rows[0].GetListValue().GetValues())
	if width == 0 {
		return nil, fmt.Errorf("response row 0 is empty")
	}
	data := make([]float64, 0, wantRows*width)
	for i, rv := range rows {
		vals := rv.GetListValue().GetValues()
		if len(vals) != width {
			return nil, fmt.Errorf("response row %d has %d columns, want %d", i, len(vals), width)
		}
		for _, v := range vals {
			data = append(data, v.GetNumberValue())
		}
	}
	return mat.NewDense(wantRows, width, data), nil
}

// #endregion wire
