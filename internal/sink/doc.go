// Package sink forwards finished crawl reports to external systems.
//
//   - Publisher writes one Kafka message per reached page (segmentio/kafka-go).
//   - RedisStatusStore keeps a short-lived status record per crawl session
//     (redis/go-redis).
//   - GraphWriter merges the link graph into Neo4j as
//     (:Page)-[:LINKS_TO]->(:Page) relationships (neo4j-go-driver).
//
// Each sink talks to its client through a small interface so tests can
// substitute fakes.
package sink
