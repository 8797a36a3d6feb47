// person-cli 人员服务运维工具
// 以 admin 角色调用网关接口：查询、实名标记、缓存重建、Excel 导出
//
// 用法:
//
//	person-cli -addr http://localhost:8090 get <pid>
//	person-cli -addr http://localhost:8090 verify <identity_no> <true|false>
//	person-cli -addr http://localhost:8090 refresh [pid]
//	person-cli -addr http://localhost:8090 export <output.xlsx>
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

const callerRoleHeader = "X-Caller-Role"

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

func main() {
	addr := flag.String("addr", "http://localhost:8090", "person-service base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	client := resty.New().
		SetBaseURL(*addr).
		SetTimeout(*timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader(callerRoleHeader, "admin")

	var err error
	switch args[0] {
	case "get":
		if len(args) != 2 {
			usage()
		}
		err = getPerson(client, args[1])
	case "verify":
		if len(args) != 3 {
			usage()
		}
		err = setVerified(client, args[1], args[2] == "true")
	case "refresh":
		pid := ""
		if len(args) == 2 {
			pid = args[1]
		}
		err = refresh(client, pid)
	case "export":
		if len(args) != 2 {
			usage()
		}
		err = exportPersons(client, args[1])
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: person-cli [-addr URL] <get pid | verify identity_no true|false | refresh [pid] | export file.xlsx>")
	os.Exit(2)
}

func getPerson(client *resty.Client, pid string) error {
	var resp envelope
	_, err := client.R().
		SetResult(&resp).
		SetError(&resp).
		Get("/person/api/v1/persons/" + pid)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return printEnvelope(resp)
}

func setVerified(client *resty.Client, identityNo string, flag bool) error {
	var resp envelope
	_, err := client.R().
		SetBody(map[string]any{"identity_no": identityNo, "flag": flag}).
		SetResult(&resp).
		SetError(&resp).
		Post("/person/api/v1/persons/verified")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return printEnvelope(resp)
}

func refresh(client *resty.Client, pid string) error {
	body := map[string]any{}
	if pid != "" {
		body["pid"] = pid
	}
	var resp envelope
	_, err := client.R().
		SetBody(body).
		SetResult(&resp).
		SetError(&resp).
		Post("/person/api/v1/refresh")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return printEnvelope(resp)
}

func exportPersons(client *resty.Client, output string) error {
	resp, err := client.R().Get("/person/api/v1/persons/export")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("export failed: %s", resp.String())
	}
	if err := os.WriteFile(output, resp.Body(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Printf("Exported %d bytes to %s\n", len(resp.Body()), output)
	return nil
}

func printEnvelope(resp envelope) error {
	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
	if resp.Code != 200 {
		return fmt.Errorf("server returned code %d: %s", resp.Code, resp.Msg)
	}
	return nil
}
