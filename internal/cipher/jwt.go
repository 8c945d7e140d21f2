package cipher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnsupportedJWT is returned when a token is not HMAC-signed.
var ErrUnsupportedJWT = errors.New("token is not HMAC-signed")

// JWTParts is a token decoded without signature verification.
type JWTParts struct {
	Header    map[string]interface{} `json:"header"`
	Claims    map[string]interface{} `json:"claims"`
	Signature string                 `json:"signature"`
}

// JWTCrackResult reports a secret recovered by CrackJWT.
type JWTCrackResult struct {
	Found     bool                   `json:"found"`
	Secret    string                 `json:"secret,omitempty"`
	Algorithm string                 `json:"algorithm"`
	Claims    map[string]interface{} `json:"claims,omitempty"`
	Tried     int                    `json:"tried"`
}

// parseUnverified decodes all three segments, including the signature which
// ParseUnverified leaves empty.
func parseUnverified(tokenString string) (*jwt.Token, []string, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, parts, err := parser.ParseUnverified(strings.TrimSpace(tokenString), jwt.MapClaims{})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: jwt parse failed: %v", ErrDecode, err)
	}
	if token.Signature, err = parser.DecodeSegment(parts[2]); err != nil {
		return nil, nil, fmt.Errorf("%w: signature decode failed: %v", ErrDecode, err)
	}
	return token, parts, nil
}

// DecodeJWT splits a token into header, claims and signature without
// verifying it.
func DecodeJWT(tokenString string) (JWTParts, error) {
	token, parts, err := parseUnverified(tokenString)
	if err != nil {
		return JWTParts{}, err
	}

	headerData, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return JWTParts{}, fmt.Errorf("%w: header decode failed: %v", ErrDecode, err)
	}
	var header map[string]interface{}
	if err := json.Unmarshal(headerData, &header); err != nil {
		return JWTParts{}, fmt.Errorf("%w: header unmarshal failed: %v", ErrDecode, err)
	}

	claims, _ := token.Claims.(jwt.MapClaims)
	return JWTParts{
		Header:    header,
		Claims:    claims,
		Signature: parts[2],
	}, nil
}

// CrackJWT tries each word as the HMAC secret of an HS256/384/512 token. A
// miss is reported with Found false, not as an error.
func CrackJWT(ctx context.Context, tokenString string, words []string) (JWTCrackResult, error) {
	token, parts, err := parseUnverified(tokenString)
	if err != nil {
		return JWTCrackResult{}, err
	}
	method, ok := token.Method.(*jwt.SigningMethodHMAC)
	if !ok {
		return JWTCrackResult{}, fmt.Errorf("%w: alg %v", ErrUnsupportedJWT, token.Header["alg"])
	}

	signingString := parts[0] + "." + parts[1]
	res := JWTCrackResult{Algorithm: method.Alg()}
	for i, word := range words {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		res.Tried++
		if method.Verify(signingString, token.Signature, []byte(word)) == nil {
			res.Found = true
			res.Secret = word
			res.Claims, _ = token.Claims.(jwt.MapClaims)
			return res, nil
		}
	}
	return res, nil
}

// jwtDecodeOp renders a token's parts as indented JSON.
type jwtDecodeOp struct {
	BaseOperation
}

func (op *jwtDecodeOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	parts, err := DecodeJWT(string(input))
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(parts, "", "  ")
}

// jwtSignOp signs JSON claims with the "secret" parameter.
type jwtSignOp struct {
	BaseOperation
}

func (op *jwtSignOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	var claims jwt.MapClaims
	if err := json.Unmarshal(input, &claims); err != nil {
		return nil, fmt.Errorf("claims must be valid JSON: %w", err)
	}

	secret, ok := params["secret"].(string)
	if !ok || secret == "" {
		return nil, fmt.Errorf("secret parameter required for JWT signing")
	}

	algorithm := "HS256"
	if alg, ok := params["algorithm"].(string); ok && alg != "" {
		algorithm = alg
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported algorithm: %s", algorithm)
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("jwt signing failed: %w", err)
	}
	return []byte(signed), nil
}

func init() {
	mustRegister(
		&jwtDecodeOp{BaseOperation: BaseOperation{
			NameValue:        "jwt_decode",
			TypeValue:        OperationTypeDecode,
			DescriptionValue: "Decode JWT token (without verification)",
		}},
		&jwtSignOp{BaseOperation: BaseOperation{
			NameValue:        "jwt_sign",
			TypeValue:        OperationTypeEncode,
			DescriptionValue: "Sign JSON claims as an HMAC JWT",
		}},
	)
}
