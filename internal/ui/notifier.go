package ui

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Nivel es el tipo de notificación; coincide con las clases CSS de la página.
type Nivel string

const (
	Exito       Nivel = "success"
	Peligro     Nivel = "danger"
	Advertencia Nivel = "warning"
	Info        Nivel = "info"
)

// AutoOcultar es el tiempo que una notificación queda visible.
const AutoOcultar = 5 * time.Second

type Notificacion struct {
	ID      string    `json:"id"`
	Nivel   Nivel     `json:"nivel"`
	Mensaje string    `json:"mensaje"`
	Creada  time.Time `json:"creada"`
}

// Notifier muestra y oculta notificaciones. Se pasa a quien lo necesite en
// lugar de colgarlo de un estado global.
type Notifier interface {
	Show(nivel Nivel, mensaje string) string
	Hide(id string) bool
	Pendientes() []Notificacion
}

// Flash guarda las notificaciones de un request o de una sesión de editor.
type Flash struct {
	mu    sync.Mutex
	items []Notificacion
	ttl   time.Duration
	now   func() time.Time
}

// NewFlash crea un Notifier en memoria. ttl <= 0 desactiva el auto-ocultado.
func NewFlash(ttl time.Duration) *Flash {
	return &Flash{ttl: ttl, now: time.Now}
}

func (f *Flash) Show(nivel Nivel, mensaje string) string {
	if nivel == "" {
		nivel = Info
	}
	n := Notificacion{
		ID:      uuid.NewString(),
		Nivel:   nivel,
		Mensaje: mensaje,
		Creada:  f.now(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, n)
	return n.ID
}

// Hide quita la notificación. Devuelve false si ya no estaba.
func (f *Flash) Hide(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, n := range f.items {
		if n.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return true
		}
	}
	return false
}

// Pendientes devuelve las notificaciones visibles, en orden de llegada,
// descartando las que ya vencieron.
func (f *Flash) Pendientes() []Notificacion {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ttl > 0 {
		limite := f.now().Add(-f.ttl)
		vigentes := f.items[:0]
		for _, n := range f.items {
			if n.Creada.After(limite) {
				vigentes = append(vigentes, n)
			}
		}
		f.items = vigentes
	}
	return append([]Notificacion(nil), f.items...)
}
