// Package mq — транспорт RabbitMQ между dispatcher'ом и worker'ом.
//
// Топология:
//
//	regwatch.research (direct)
//	└── research.requested [routing: requested] → worker, DLQ: dlq.research
//	regwatch.dlq (direct)
//	└── dlq.research [routing: research]
//
// Сообщения — JSON-конверты Envelope. Единственный тип сейчас —
// research.requested с ID созданного job. Очередь только будит worker:
// источник истины — таблица jobs, и worker дополнительно опрашивает её.
package mq
