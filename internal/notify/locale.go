package notify

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The key doubles as the English text.
const (
	keyTitleSuccess          = "Success"
	keyTitleError            = "Error"
	keyTitlePermissionDenied = "Permission Denied"
	keyTitleScanFailed       = "Scan Failed"

	keyPermissionDenied = "Please grant all permissions to use Bluetooth features"
	keyScanFailed       = "Could not scan for Bluetooth devices"
	keyConnected        = "Connected to device: %s"
	keyDisconnected     = "Disconnected from device: %s"
	keyConnectFailed    = "Failed to connect to device: %s"
	keyDisconnectFailed = "Failed to disconnect from device: %s"
)

var spanish = map[string]string{
	keyTitleSuccess:          "Éxito",
	keyTitleError:            "Error",
	keyTitlePermissionDenied: "Permiso denegado",
	keyTitleScanFailed:       "Búsqueda fallida",
	keyPermissionDenied:      "Concede todos los permisos para usar las funciones de Bluetooth",
	keyScanFailed:            "No se pudieron buscar dispositivos Bluetooth",
	keyConnected:             "Conectado al dispositivo: %s",
	keyDisconnected:          "Desconectado del dispositivo: %s",
	keyConnectFailed:         "No se pudo conectar al dispositivo: %s",
	keyDisconnectFailed:      "No se pudo desconectar del dispositivo: %s",
}

// SupportedLocales lists the locales with a translation catalog.
var SupportedLocales = []language.Tag{language.English, language.Spanish}

// Localizer builds localized notices.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// NewLocalizer returns a Localizer for the given BCP 47 locale ("en", "es",
// "es-MX", ...). Unsupported but well-formed locales fall back to English.
func NewLocalizer(locale string) (*Localizer, error) {
	requested, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("notify: parse locale %q: %w", locale, err)
	}

	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, key := range []string{
		keyTitleSuccess, keyTitleError, keyTitlePermissionDenied, keyTitleScanFailed,
		keyPermissionDenied, keyScanFailed, keyConnected, keyDisconnected,
		keyConnectFailed, keyDisconnectFailed,
	} {
		if err := b.SetString(language.English, key, key); err != nil {
			return nil, fmt.Errorf("notify: catalog: %w", err)
		}
		if err := b.SetString(language.Spanish, key, spanish[key]); err != nil {
			return nil, fmt.Errorf("notify: catalog: %w", err)
		}
	}

	_, idx, _ := language.NewMatcher(SupportedLocales).Match(requested)
	tag := SupportedLocales[idx]
	return &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(b)),
	}, nil
}

// Tag returns the matched locale.
func (l *Localizer) Tag() language.Tag { return l.tag }

func (l *Localizer) PermissionDenied(err error) Notice {
	return Notice{
		Kind:    KindPermissionDenied,
		Title:   l.printer.Sprintf(keyTitlePermissionDenied),
		Message: l.printer.Sprintf(keyPermissionDenied),
		Err:     err,
	}
}

func (l *Localizer) ScanFailed(err error) Notice {
	return Notice{
		Kind:    KindScanFailed,
		Title:   l.printer.Sprintf(keyTitleScanFailed),
		Message: l.printer.Sprintf(keyScanFailed),
		Err:     err,
	}
}

func (l *Localizer) Connected(id string) Notice {
	return Notice{
		Kind:     KindSuccess,
		DeviceID: id,
		Title:    l.printer.Sprintf(keyTitleSuccess),
		Message:  l.printer.Sprintf(keyConnected, id),
	}
}

func (l *Localizer) Disconnected(id string) Notice {
	return Notice{
		Kind:     KindSuccess,
		DeviceID: id,
		Title:    l.printer.Sprintf(keyTitleSuccess),
		Message:  l.printer.Sprintf(keyDisconnected, id),
	}
}

func (l *Localizer) ConnectFailed(id string, err error) Notice {
	return Notice{
		Kind:     KindConnectFailed,
		DeviceID: id,
		Title:    l.printer.Sprintf(keyTitleError),
		Message:  l.printer.Sprintf(keyConnectFailed, id),
		Err:      err,
	}
}

func (l *Localizer) DisconnectFailed(id string, err error) Notice {
	return Notice{
		Kind:     KindDisconnectFailed,
		DeviceID: id,
		Title:    l.printer.Sprintf(keyTitleError),
		Message:  l.printer.Sprintf(keyDisconnectFailed, id),
		Err:      err,
	}
}

// English returns the English Localizer. It cannot fail.
func English() *Localizer {
	l, err := NewLocalizer("en")
	if err != nil {
		panic("notify: english catalog: " + err.Error())
	}
	return l
}
