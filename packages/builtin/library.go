package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Library returns the functions shipped with hitrunner.
func Library() Functions {
	return Functions{
		"now":                funcNow,
		"timestamp":          funcTimestamp,
		"timestampMs":        funcTimestampMs,
		"get_timestamp":      funcGetTimestamp,
		"uuid":               funcUUID,
		"random":             funcRandom,
		"randomString":       funcRandomString,
		"gen_random_string":  funcRandomString,
		"randomEmail":        funcRandomEmail,
		"randomAlphanumeric": funcRandomAlphanumeric,
		"base64":             funcBase64,
		"base64Decode":       funcBase64Decode,
		"md5":                funcMD5,
		"sha256":             funcSHA256,
		"urlEncode":          funcURLEncode,
		"urlDecode":          funcURLDecode,
		"date":               funcDate,
		"get_current_date":   funcDate,
		"json":               funcJSON,
		"sleep":              funcSleep,
		"wait_for":           funcWaitFor,
		"oauth2_token":       funcOAuth2Token,
	}
}

func argString(args []any, i int, def string) string {
	if i >= len(args) || args[i] == nil {
		return def
	}
	return fmt.Sprint(args[i])
}

func argInt(args []any, i int, def int) int {
	if i >= len(args) {
		return def
	}
	switch v := args[i].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "warning: argument %q is not a valid integer\n", v)
	}
	return def
}

func funcNow(_ []any, _ map[string]any) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcTimestamp(_ []any, _ map[string]any) (any, error) {
	return time.Now().Unix(), nil
}

func funcTimestampMs(_ []any, _ map[string]any) (any, error) {
	return time.Now().UnixMilli(), nil
}

// funcGetTimestamp returns the first n digits of the millisecond timestamp.
func funcGetTimestamp(args []any, _ map[string]any) (any, error) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	n := argInt(args, 0, 13)
	if n > 0 && n < len(ts) {
		ts = ts[:n]
	}
	return ts, nil
}

func funcUUID(_ []any, _ map[string]any) (any, error) {
	return uuid.New().String(), nil
}

func funcRandom(args []any, _ map[string]any) (any, error) {
	min, max := argInt(args, 0, 0), argInt(args, 1, 100)
	if max < min {
		return nil, fmt.Errorf("random(): max %d is less than min %d", max, min)
	}
	return rand.Intn(max-min+1) + min, nil
}

func funcRandomString(args []any, _ map[string]any) (any, error) {
	return randomString(argInt(args, 0, 16), alphanumeric), nil
}

func funcRandomEmail(_ []any, _ map[string]any) (any, error) {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	domain := randomString(6, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("%s@%s.com", user, domain), nil
}

func funcRandomAlphanumeric(args []any, _ map[string]any) (any, error) {
	return randomString(argInt(args, 0, 8), alphanumeric), nil
}

func funcBase64(args []any, _ map[string]any) (any, error) {
	return base64.StdEncoding.EncodeToString([]byte(argString(args, 0, ""))), nil
}

func funcBase64Decode(args []any, _ map[string]any) (any, error) {
	decoded, err := base64.StdEncoding.DecodeString(argString(args, 0, ""))
	if err != nil {
		return nil, fmt.Errorf("base64Decode(): %w", err)
	}
	return string(decoded), nil
}

func funcMD5(args []any, _ map[string]any) (any, error) {
	hash := md5.Sum([]byte(argString(args, 0, "")))
	return hex.EncodeToString(hash[:]), nil
}

func funcSHA256(args []any, _ map[string]any) (any, error) {
	hash := sha256.Sum256([]byte(argString(args, 0, "")))
	return hex.EncodeToString(hash[:]), nil
}

func funcURLEncode(args []any, _ map[string]any) (any, error) {
	return url.QueryEscape(argString(args, 0, "")), nil
}

func funcURLDecode(args []any, _ map[string]any) (any, error) {
	raw := argString(args, 0, "")
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw, nil
	}
	return decoded, nil
}

func funcDate(args []any, _ map[string]any) (any, error) {
	return time.Now().UTC().Format(argString(args, 0, "2006-01-02")), nil
}

// funcJSON encodes its argument, so maps and lists can be embedded in strings.
func funcJSON(args []any, _ map[string]any) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return nil, fmt.Errorf("json(): %w", err)
	}
	return string(data), nil
}

func funcSleep(args []any, _ map[string]any) (any, error) {
	var d time.Duration
	switch v := firstArg(args).(type) {
	case int:
		d = time.Duration(v) * time.Second
	case float64:
		d = time.Duration(v * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("sleep(): %w", err)
		}
		d = parsed
	}
	time.Sleep(d)
	return nil, nil
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
