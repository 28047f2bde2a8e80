package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	dto "github.com/dropDatabas3/farmauth/internal/http/dto/auth"
	"github.com/dropDatabas3/farmauth/internal/role"
	"github.com/dropDatabas3/farmauth/internal/session"
	"github.com/dropDatabas3/farmauth/internal/storage"
)

// secret resuelve un valor sensible: flag, variable de entorno o, con "-",
// una línea de stdin. Nunca se toma de los argumentos posicionales.
func secret(flagVal, env string, in io.Reader) (string, error) {
	v := flagVal
	if v == "" {
		v = os.Getenv(env)
	}
	if v == "-" {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		v = strings.TrimRight(line, "\r\n")
	}
	if v == "" {
		return "", fmt.Errorf("falta valor (flag o env %s, \"-\" para stdin)", env)
	}
	return v, nil
}

func userText(u *dto.User) func(io.Writer) {
	return func(w io.Writer) {
		if u == nil {
			fmt.Fprintln(w, "user=<none>")
			return
		}
		fmt.Fprintf(w, "id=%s identification=%s role=%s\n", u.ID, u.Identification, u.Role)
		if u.Fullname != "" {
			fmt.Fprintf(w, "fullname=%s\n", u.Fullname)
		}
		if u.Email != "" {
			fmt.Fprintf(w, "email=%s\n", u.Email)
		}
		if u.Status != "" {
			fmt.Fprintf(w, "status=%s\n", u.Status)
		}
	}
}

func messageText(msg string) func(io.Writer) {
	return func(w io.Writer) {
		if msg == "" {
			msg = "ok"
		}
		fmt.Fprintln(w, msg)
	}
}

func loginCmd(a *app) *cobra.Command {
	var ident, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Iniciar sesión (POST /auth/login)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ident == "" {
				return fmt.Errorf("--identification es requerido")
			}
			pw, err := secret(password, "FARMAUTH_PASSWORD", cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("password: %w", err)
			}
			res, err := a.svc.Login(cmd.Context(), ident, pw)
			if err != nil {
				return err
			}
			// el token no se imprime: queda en el store si bearer_mode está activo
			out := struct {
				Message       string    `json:"message,omitempty"`
				CookieSession bool      `json:"cookie_session"`
				Persisted     bool      `json:"persisted"`
				User          *dto.User `json:"user,omitempty"`
			}{res.Message, res.CookieSession, a.cfg.Auth.BearerMode && res.AccessToken != "", res.User}
			a.print(out, func(w io.Writer) {
				fmt.Fprintf(w, "ok session=%s\n", a.svc.State())
				userText(res.User)(w)
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&ident, "identification", "", "Identificación del usuario")
	cmd.Flags().StringVar(&password, "password", "", "Password (env FARMAUTH_PASSWORD, \"-\" = stdin)")
	return cmd
}

func meCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "me",
		Short: "Perfil del usuario autenticado (GET /auth/me)",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.GetUserProfile(cmd.Context(), session.ProfileOptions{Force: force})
			if err != nil {
				return err
			}
			a.print(res, userText(res.User))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Ignorar el cache de perfil")
	return cmd
}

func refreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renovar el token (POST /auth/refresh)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.RefreshToken(cmd.Context()); err != nil {
				return err
			}
			out := map[string]any{"ok": true, "state": a.svc.State()}
			a.print(out, messageText("ok"))
			return nil
		},
	}
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Cerrar sesión; el estado local se limpia aunque falle el backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.Logout(cmd.Context())
			a.dropCookies = true
			if res != nil {
				a.print(res, func(w io.Writer) {
					fmt.Fprintf(w, "local=cleared remote=%t\n", res.Remote)
				})
			}
			return err
		},
	}
}

func recoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recover <email|identification>",
		Short: "Solicitar recuperación de cuenta (POST /auth/recover)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.RecoverAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.print(res, func(w io.Writer) {
				messageText(res.Message)(w)
				if res.EmailHint != "" {
					fmt.Fprintf(w, "email=%s\n", res.EmailHint)
				}
				if res.ExpiresIn > 0 {
					fmt.Fprintf(w, "expires_in=%ds\n", res.ExpiresIn)
				}
			})
			return nil
		},
	}
}

func resetPasswordCmd(a *app) *cobra.Command {
	var token, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Fijar una nueva contraseña con el token de recuperación",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := secret(token, "FARMAUTH_RESET_TOKEN", cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reset token: %w", err)
			}
			pw, err := secret(password, "FARMAUTH_NEW_PASSWORD", cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("password: %w", err)
			}
			res, err := a.svc.ResetPassword(cmd.Context(), tok, pw)
			if err != nil {
				return err
			}
			a.print(res, messageText(res.Message))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Token de recuperación (env FARMAUTH_RESET_TOKEN)")
	cmd.Flags().StringVar(&password, "new-password", "", "Nueva contraseña (env FARMAUTH_NEW_PASSWORD)")
	return cmd
}

func changePasswordCmd(a *app) *cobra.Command {
	var current, next string
	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Cambiar la contraseña del usuario autenticado",
		RunE: func(cmd *cobra.Command, args []string) error {
			cur, err := secret(current, "FARMAUTH_PASSWORD", cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("current password: %w", err)
			}
			nxt, err := secret(next, "FARMAUTH_NEW_PASSWORD", cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("new password: %w", err)
			}
			res, err := a.svc.ChangePassword(cmd.Context(), cur, nxt)
			if err != nil {
				return err
			}
			if res.ShouldClearAuth {
				a.dropCookies = true
			}
			a.print(res, func(w io.Writer) {
				messageText(res.Message)(w)
				if res.ShouldClearAuth {
					fmt.Fprintln(w, "session=cleared")
				}
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current-password", "", "Contraseña actual (env FARMAUTH_PASSWORD)")
	cmd.Flags().StringVar(&next, "new-password", "", "Nueva contraseña (env FARMAUTH_NEW_PASSWORD)")
	return cmd
}

// roleCmd no toca la red: sólo normaliza el valor dado.
func roleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "role <value>",
		Short: "Normalizar un valor de rol (código, alias o nombre)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := role.Normalize(args[0])
			out := map[string]any{"input": args[0], "role": r, "known": r.Known()}
			a.print(out, messageText(r.String()))
			return nil
		},
	}
}

func purgeLegacyCmd(a *app) *cobra.Command {
	var keys []string
	cmd := &cobra.Command{
		Use:   "purge-legacy",
		Short: "Borrar claves heredadas del store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(keys) == 0 {
				keys = a.cfg.Auth.LegacyKeys
			}
			n := storage.PurgeLegacy(cmd.Context(), a.store, keys)
			out := map[string]any{"requested": len(keys), "deleted": n}
			a.print(out, func(w io.Writer) {
				fmt.Fprintf(w, "deleted=%d/%d\n", n, len(keys))
			})
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&keys, "key", nil, "Clave a borrar (repetible); default auth.legacy_keys")
	return cmd
}
