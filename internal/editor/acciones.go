package editor

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrAccionDesconocida = errors.New("acción desconocida")

// Accion es una acción del usuario sobre el editor. El conjunto es cerrado:
// AgregarFila, QuitarFila, CambiarCampo y Enviar.
type Accion interface {
	accion()
}

// AgregarFila inserta una fila nueva debajo de Fila.
type AgregarFila struct{ Fila int }

// QuitarFila elimina la fila indicada.
type QuitarFila struct{ Fila int }

// CambiarCampo representa un cambio de valor en un input de la fila.
type CambiarCampo struct {
	Fila  int
	Campo Campo
	Valor string
}

// Enviar pide normalizar el formulario para enviarlo.
type Enviar struct{}

func (AgregarFila) accion()  {}
func (QuitarFila) accion()   {}
func (CambiarCampo) accion() {}
func (Enviar) accion()       {}

// Nombres de acción en el formulario y en el websocket.
const (
	AccionAgregar  = "agregar"
	AccionQuitar   = "quitar"
	AccionProducto = "producto"
	AccionCantidad = "cantidad"
	AccionPrecio   = "precio"
	AccionEnviar   = "enviar"
)

// ParseAccion arma la acción tipada a partir del discriminador que llega
// por formulario o websocket.
func ParseAccion(nombre string, fila int, valor string) (Accion, error) {
	switch nombre {
	case AccionAgregar:
		return AgregarFila{Fila: fila}, nil
	case AccionQuitar:
		return QuitarFila{Fila: fila}, nil
	case AccionProducto:
		return CambiarCampo{Fila: fila, Campo: CampoProducto, Valor: valor}, nil
	case AccionCantidad:
		return CambiarCampo{Fila: fila, Campo: CampoCantidad, Valor: valor}, nil
	case AccionPrecio:
		return CambiarCampo{Fila: fila, Campo: CampoPrecio, Valor: valor}, nil
	case AccionEnviar:
		return Enviar{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrAccionDesconocida, nombre)
}

// Dispatch aplica la acción. Sólo Enviar devuelve un resultado de envío.
// El subtotal es derivado: un cambio sobre ese campo se ignora y se
// recalcula.
func (e *Editor) Dispatch(a Accion) (*ResultadoEnvio, error) {
	switch act := a.(type) {
	case AgregarFila:
		if _, ok := e.AddAfter(act.Fila); !ok {
			return nil, fmt.Errorf("%w: %d", ErrFilaInexistente, act.Fila)
		}
		return nil, nil
	case QuitarFila:
		return nil, e.Remove(act.Fila)
	case CambiarCampo:
		switch act.Campo {
		case CampoProducto:
			return nil, e.SelectProduct(act.Fila, act.Valor)
		case CampoCantidad:
			return nil, e.ChangeQuantity(act.Fila, act.Valor)
		case CampoPrecio:
			return nil, e.ChangePrice(act.Fila, act.Valor)
		case CampoSubtotal:
			if _, err := e.fila(act.Fila); err != nil {
				return nil, err
			}
			e.Recompute()
			return nil, nil
		}
		return nil, fmt.Errorf("%w: campo %q", ErrAccionDesconocida, act.Campo)
	case Enviar:
		res := e.PrepareSubmit()
		return &res, nil
	}
	e.logger.Warn("Acción no soportada", zap.String("tipo", fmt.Sprintf("%T", a)))
	return nil, ErrAccionDesconocida
}
