// Package uploader provides the multipart upload helpers callable from
// templates:
//
//	variables:
//	  form: ${multipart_encoder(file=data/avatar.png, name=alice)}
//	request:
//	  headers:
//	    Content-Type: ${multipart_content_type($form)}
//	  data: $form
//
// A value naming an existing file, absolute or relative to the project root,
// is uploaded as that file; a value prefixed with "@" must name a file. Any
// other value becomes a plain form field.
package uploader

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitrunner/packages/builtin"
	"github.com/abdul-hamid-achik/hitrunner/packages/core/failure"
)

// Encoder is an encoded multipart/form-data body.
type Encoder struct {
	body        []byte
	contentType string
}

func (e *Encoder) Bytes() []byte       { return e.body }
func (e *Encoder) ContentType() string { return e.contentType }

// Functions returns the helpers with file paths resolved against root.
func Functions(root string) builtin.Functions {
	return builtin.Functions{
		"multipart_encoder": func(_ []any, kwargs map[string]any) (any, error) {
			return Encode(root, kwargs)
		},
		"multipart_content_type": func(args []any, _ map[string]any) (any, error) {
			if len(args) != 1 {
				return nil, failure.Params("multipart_content_type() takes exactly one encoder")
			}
			enc, ok := args[0].(*Encoder)
			if !ok {
				return nil, failure.Params("multipart_content_type() expects an encoder, got %T", args[0])
			}
			return enc.ContentType(), nil
		},
	}
}

// Encode writes fields in name order.
func Encode(root string, fields map[string]any) (*Encoder, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, name := range names {
		value := fmt.Sprint(fields[name])
		if fields[name] == nil {
			value = ""
		}

		forced := strings.HasPrefix(value, "@")
		filePath := strings.TrimPrefix(value, "@")
		if !filepath.IsAbs(filePath) && root != "" {
			filePath = filepath.Join(root, filePath)
		}

		if !forced && !isFile(filePath) {
			if err := writer.WriteField(name, value); err != nil {
				return nil, err
			}
			continue
		}

		if !filepath.IsAbs(strings.TrimPrefix(value, "@")) && root != "" {
			// Validate path doesn't escape base directory (prevent path traversal)
			if err := validatePathWithinBase(filePath, root); err != nil {
				return nil, err
			}
		}
		if err := writeFile(writer, name, filePath); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return &Encoder{body: body.Bytes(), contentType: writer.FormDataContentType()}, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func writeFile(writer *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("upload %s: %w", field, err)
	}
	defer file.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(path)))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}
