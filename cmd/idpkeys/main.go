package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campuskit/idp/internal/keys"
)

// idpkeys gestiona el material de firma del IdP desde la terminal:
// generar una clave nueva, inspeccionar su kid y exportar el JWKS público.
func main() {
	var (
		bits    int
		outPath string
	)

	root := &cobra.Command{
		Use:   "idpkeys",
		Short: "Gestión de claves de firma del IdP",
	}

	genCmd := &cobra.Command{
		Use:   "generate",
		Short: "Genera una clave RSA nueva y la escribe en PEM (PKCS#1)",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keys.Generate(bits)
			if err != nil {
				return err
			}
			pem := kp.PrivatePEM()
			if outPath == "" || outPath == "-" {
				fmt.Print(string(pem))
			} else {
				// 0600: la clave privada no se comparte
				if err := os.WriteFile(outPath, pem, 0o600); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "clave escrita en %s\n", outPath)
			}
			fmt.Fprintf(os.Stderr, "kid=%s alg=%s bits=%d\n", kp.KID(), keys.Alg, bits)
			return nil
		},
	}
	genCmd.Flags().IntVar(&bits, "bits", 2048, "tamaño de la clave RSA")
	genCmd.Flags().StringVar(&outPath, "out", "-", "archivo destino (\"-\" = stdout)")

	var keyPath string

	kidCmd := &cobra.Command{
		Use:   "kid",
		Short: "Imprime el kid derivado de una clave PEM",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keys.Load(keyPath, "")
			if err != nil {
				return err
			}
			fmt.Println(kp.KID())
			return nil
		},
	}
	kidCmd.Flags().StringVar(&keyPath, "key", "", "ruta a la clave PEM")
	_ = kidCmd.MarkFlagRequired("key")

	jwksCmd := &cobra.Command{
		Use:   "jwks",
		Short: "Exporta el JWKS público de una clave PEM",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keys.Load(keyPath, "")
			if err != nil {
				return err
			}
			fmt.Println(string(kp.JWKSJSON()))
			return nil
		},
	}
	jwksCmd.Flags().StringVar(&keyPath, "key", "", "ruta a la clave PEM")
	_ = jwksCmd.MarkFlagRequired("key")

	root.AddCommand(genCmd, kidCmd, jwksCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
