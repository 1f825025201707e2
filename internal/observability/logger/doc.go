// Package logger envuelve zap: un logger global (Init/L) y un logger por
// request que viaja en el context.
//
// El middleware de logging abre el scope con request_id, method y path; los
// middlewares de sesión y auth le suman session/user_id con AddFields, y esos
// campos salen también en la línea de acceso.
//
// Nunca se loguean secretos TOTP, códigos, recovery codes, passwords ni ids
// de sesión crudos (SessionID los hashea).
//
// Uso en services:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor.confirm"))
//	log.Info("two-factor confirmed", logger.UserID(userID))
package logger
