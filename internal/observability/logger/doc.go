// Package logger provee el logger Zap del cliente de sesión, con scoping por contexto.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada operación de sesión puede llevar un logger con campos
//     propios (op, endpoint, request_id) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Debug: Config.Debug fuerza el nivel debug (toggle DEBUG del entorno).
//
// # Usage
//
//	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, Debug: cfg.Log.Debug})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Component("session"), logger.Op("Login"))
//	log.Debug("login response normalized", logger.Variant("data.data"))
//
// Nunca loguear tokens ni contraseñas: usar TokenHint para dejar rastro.
package logger
