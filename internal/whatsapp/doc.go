// Package whatsapp implements the browser automation client for WhatsApp Web.
//
// Each Client owns one headless Chromium profile (rod) whose user-data-dir is
// the instance's credential directory, so a login survives process restarts.
// Lifecycle detection is DOM polling: a QR code element means awaiting scan,
// the chat pane means authenticated and ready. Events are delivered on a
// channel consumed by the instance registry.
package whatsapp
