package telemetry

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String("method", method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String("path", path)
}

func statusAttr(status int) attribute.KeyValue {
	return attribute.String("status", strconv.Itoa(status))
}

func resultAttr(result string) attribute.KeyValue {
	return attribute.String("result", result)
}

func opAttr(op string) attribute.KeyValue {
	return attribute.String("op", op)
}

func fromAttr(from string) attribute.KeyValue {
	return attribute.String("from", from)
}

func toAttr(to string) attribute.KeyValue {
	return attribute.String("to", to)
}

func gateAttr(gate string) attribute.KeyValue {
	return attribute.String("gate", gate)
}

func decisionAttr(decision string) attribute.KeyValue {
	return attribute.String("decision", decision)
}
