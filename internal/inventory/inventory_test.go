package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/willia4/electriclemur-v3/internal/definition"
	"github.com/willia4/electriclemur-v3/pkg/docker"
	"github.com/willia4/electriclemur-v3/pkg/doctl"
)

type stubVolumes struct {
	calls []string
}

func (s *stubVolumes) ReconcileVolume(_ context.Context, role string) (*docker.Volume, error) {
	s.calls = append(s.calls, role)
	return &docker.Volume{Name: role + "-1700000000000", Mountpoint: "/mnt/" + role}, nil
}

type stubDroplets struct {
	droplet *doctl.Droplet
}

func (s *stubDroplets) FindDroplet(context.Context, string) (*doctl.Droplet, error) {
	return s.droplet, nil
}

func newEmitter() (*Emitter, *stubVolumes, *stubDroplets) {
	vols := &stubVolumes{}
	drops := &stubDroplets{}
	return &Emitter{
		Env: &definition.Environment{
			Name:        "staging",
			DropletName: "lemur-staging",
			FQDN:        "staging.example.com",
			SecretPath:  "/srv/secrets/staging",
		},
		Group:         "lemur",
		User:          "root",
		AWSKeyPath:    "/srv/secrets/aws/backup_access_key.txt",
		AWSSecretPath: "/srv/secrets/aws/backup_access_secret.txt",
		Volumes: []VolumeVar{
			{Role: "database", Variable: "databaseMount", Field: FieldMountpoint},
			{Role: "siteCom", Variable: "sitecom_volume_id", Field: FieldName},
		},
		Droplets: drops,
		Docker:   vols,
	}, vols, drops
}

func TestList(t *testing.T) {
	e, vols, _ := newEmitter()

	inv, err := e.List(context.Background(), false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	group, ok := inv["lemur"]
	if !ok {
		t.Fatalf("inventory = %+v", inv)
	}
	if !reflect.DeepEqual(group.Hosts, []string{"staging.example.com"}) {
		t.Errorf("hosts = %v", group.Hosts)
	}
	want := map[string]string{
		"ansible_user":                  "root",
		"fqdn":                          "staging.example.com",
		"secretsPath":                   "/srv/secrets/staging",
		"aws_backup_access_key_path":    "/srv/secrets/aws/backup_access_key.txt",
		"aws_backup_access_secret_path": "/srv/secrets/aws/backup_access_secret.txt",
		"databaseMount":                 "/mnt/database",
		"sitecom_volume_id":             "siteCom-1700000000000",
	}
	if !reflect.DeepEqual(group.Vars, want) {
		t.Errorf("vars = %v", group.Vars)
	}
	if !reflect.DeepEqual(vols.calls, []string{"database", "siteCom"}) {
		t.Errorf("volume lookups = %v", vols.calls)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, inv); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"children": []`) {
		t.Errorf("children must render as an empty array: %s", buf.String())
	}
	var decoded map[string]Group
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
}

func TestListNoVolumes(t *testing.T) {
	e, vols, _ := newEmitter()

	inv, err := e.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(vols.calls) != 0 {
		t.Errorf("volume lookups = %v", vols.calls)
	}
	if _, ok := inv["lemur"].Vars["databaseMount"]; ok {
		t.Errorf("volume variable present with noVolumes")
	}
}

func TestHostIsEmptyObject(t *testing.T) {
	e, _, _ := newEmitter()
	var buf bytes.Buffer
	if err := WriteJSON(&buf, e.Host("staging.example.com")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{}\n" {
		t.Errorf("Host() = %q", buf.String())
	}
}

func TestIP(t *testing.T) {
	e, _, drops := newEmitter()

	if _, err := e.IP(context.Background()); err == nil || !strings.Contains(err.Error(), "lemur-staging") {
		t.Errorf("IP() without droplet error = %v", err)
	}

	d := &doctl.Droplet{Name: "lemur-staging"}
	d.Networks.V4 = []doctl.Network{{IPAddress: "10.1.1.1", Type: "private"}, {IPAddress: "198.51.100.2", Type: "public"}}
	drops.droplet = d

	ip, err := e.IP(context.Background())
	if err != nil || ip != "198.51.100.2" {
		t.Errorf("IP() = %q, %v", ip, err)
	}
	if e.FQDN() != "staging.example.com" {
		t.Errorf("FQDN() = %q", e.FQDN())
	}
}

func TestVolumeList(t *testing.T) {
	e, _, _ := newEmitter()
	entries, err := e.VolumeList(context.Background(), []string{"database", "sshKeys"})
	if err != nil {
		t.Fatalf("VolumeList() error = %v", err)
	}
	want := []VolumeEntry{
		{Role: "database", Name: "database-1700000000000", Mountpoint: "/mnt/database"},
		{Role: "sshKeys", Name: "sshKeys-1700000000000", Mountpoint: "/mnt/sshKeys"},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("VolumeList() = %+v", entries)
	}
}
