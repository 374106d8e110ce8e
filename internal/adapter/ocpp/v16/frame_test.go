package v16

import (
	"encoding/json"
	"testing"
)

func TestNormalizeFieldNames_AcceptsSnakeAndCamelCase(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"camelCase", `{"connectorId":1,"idTag":"TAG-1"}`},
		{"snake_case", `{"connector_id":1,"id_tag":"TAG-1"}`},
		{"mixed", `{"Connector_Id":1,"IdTag":"TAG-1"}`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var req struct {
				ConnectorId int    `json:"connectorId"`
				IdTag       string `json:"idTag"`
			}
			if err := json.Unmarshal(normalizeFieldNames(json.RawMessage(c.in)), &req); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if req.ConnectorId != 1 || req.IdTag != "TAG-1" {
				t.Fatalf("expected connectorId=1 idTag=TAG-1, got %+v", req)
			}
		})
	}
}

func TestNormalizeFieldNames_NestedObjectsAndArrays(t *testing.T) {
	in := json.RawMessage(`{"meter_value":[{"sampled_value":[{"Measurand":"Energy.Active.Import.Register","value":"100"}]}]}`)

	var req struct {
		MeterValue []struct {
			SampledValue []struct {
				Measurand string `json:"measurand"`
				Value     string `json:"value"`
			} `json:"sampledValue"`
		} `json:"meterValue"`
	}
	if err := json.Unmarshal(normalizeFieldNames(in), &req); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(req.MeterValue) != 1 || len(req.MeterValue[0].SampledValue) != 1 {
		t.Fatalf("expected nested arrays to survive normalization, got %+v", req)
	}
	if req.MeterValue[0].SampledValue[0].Measurand != "Energy.Active.Import.Register" {
		t.Fatalf("expected measurand preserved, got %q", req.MeterValue[0].SampledValue[0].Measurand)
	}
}

func TestNormalizeFieldNames_MalformedPayloadPassesThrough(t *testing.T) {
	in := json.RawMessage(`not json`)
	if got := normalizeFieldNames(in); string(got) != string(in) {
		t.Fatalf("expected malformed payload to pass through unchanged, got %q", got)
	}
}
