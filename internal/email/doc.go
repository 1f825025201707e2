// Package email envía los correos transaccionales del servicio (reset de password).
package email
