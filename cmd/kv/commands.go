package kv

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			if err := rpcStore.Set(key, []byte(value)); err != nil {
				return err
			} else {
				fmt.Println("set successfully")
			}
			return nil
		},
	}
	setTTLCmd = &cobra.Command{
		Use:   "setttl [key] [value] [ttlMillis]",
		Short: "Sets the value for a key with a time-to-live in milliseconds",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			ttlMillis, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("ttlMillis must be a number: %w", err)
			}
			if err := rpcStore.SetTTL(
				key,
				[]byte(value),
				time.Duration(ttlMillis)*time.Millisecond,
			); err != nil {
				return err
			} else {
				fmt.Println("setttl successfully")
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if resp, ok, err := rpcStore.Get(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := rpcStore.Delete(key); err != nil {
				return err
			} else {
				fmt.Println("delete successfully")
			}
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints statistics about the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetInfo()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)
