package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"go.uber.org/zap"
)

//go:embed files/*.tmpl
var files embed.FS

// Имена шаблонов совпадают с видом уведомления
const (
	PurchaseRefunded = "purchase_refunded"
	SaleReversed     = "sale_reversed"
	OpsAlert         = "ops_alert"
)

// Renderer рендерит шаблоны для уведомлений
type Renderer struct {
	logger    *zap.Logger
	templates *template.Template
}

// NewRenderer создаёт новый renderer и загружает встроенные шаблоны
func NewRenderer(logger *zap.Logger) (*Renderer, error) {
	tmpl, err := template.New("notifications").Option("missingkey=zero").ParseFS(files, "files/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification templates: %w", err)
	}
	return &Renderer{logger: logger, templates: tmpl}, nil
}

// Render рендерит шаблон name (без расширения)
func (r *Renderer) Render(name string, data any) (string, error) {
	t := r.templates.Lookup(name + ".tmpl")
	if t == nil {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}
